// Package title derives a short conversation title without calling a
// model: from the user's first message, and later from the Chairman's
// synthesis once Stage 3 completes. An optional best-effort LLM refinement
// pass may override either, but both derivations stand on their own.
//
// Grounded on the reference council's backend/main.py
// _derive_title_from_first_message / _derive_title_from_chairman: spec.md's
// distillation described title generation as "a separate, best-effort
// one-shot model call", but the original only falls back to a model for
// refinement after deriving a title from plain text first.
package title

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"ai-notetaking-be/pkg/llm"
)

const (
	defaultMaxChars    = 60
	firstMessageMaxWords = 8
	chairmanMaxWords      = 10
)

var (
	markupPattern    = regexp.MustCompile("[`*_>#]+")
	whitespacePattern = regexp.MustCompile(`\s+`)
	headingPattern    = regexp.MustCompile(`^#+\s*`)
)

// DeriveFromPrompt produces a title from the user's prompt alone, with no
// model call; "New conversation" if the prompt has no non-blank line.
func DeriveFromPrompt(content string) string {
	line := firstNonEmptyLine(content)
	if line == "" {
		return "New conversation"
	}

	line = clean(line)
	line = truncateWords(line, firstMessageMaxWords)
	return truncateChars(line, defaultMaxChars)
}

// DeriveFromChairman produces a refined title from the Chairman's Stage-3
// text, once it is available. Returns "" if the text yields nothing usable,
// in which case the caller should keep the existing title.
func DeriveFromChairman(stage3Text string) string {
	line := firstNonEmptyLine(stage3Text)
	if line == "" {
		return ""
	}

	line = headingPattern.ReplaceAllString(line, "")
	line = clean(line)
	if line == "" {
		return ""
	}

	line = truncateWords(line, chairmanMaxWords)
	return truncateChars(line, defaultMaxChars)
}

func firstNonEmptyLine(content string) string {
	for _, ln := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(ln); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func clean(line string) string {
	line = markupPattern.ReplaceAllString(line, "")
	line = whitespacePattern.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}

func truncateWords(line string, maxWords int) string {
	words := strings.Fields(line)
	if len(words) <= maxWords {
		return line
	}
	return strings.Join(words[:maxWords], " ") + "…"
}

func truncateChars(line string, maxChars int) string {
	if utf8.RuneCountInString(line) <= maxChars {
		return strings.TrimRight(line, " ")
	}
	runes := []rune(line)
	return strings.TrimRight(string(runes[:maxChars]), " ") + "…"
}

// Generator optionally refines a derived title via one best-effort model
// call. Refine swallows failure itself and returns the caller's fallback
// title instead.
type Generator struct {
	Client  llm.ModelClient
	ModelID string
}

const refineSystemPrompt = "Given a user's message, respond with a short conversation title of 6 words or " +
	"fewer, no punctuation, no quotes. Respond with only the title."

// Refine asks the configured model for a sharper title. Returns the
// fallback unchanged on any error, empty response, or an unconfigured
// Generator, and never blocks past deadline.
func (g *Generator) Refine(ctx context.Context, prompt, fallback string, deadline time.Time) string {
	if g == nil || g.Client == nil || g.ModelID == "" {
		return fallback
	}

	text, err := g.Client.Complete(ctx, g.ModelID, refineSystemPrompt, prompt, deadline)
	if err != nil {
		return fallback
	}

	refined := clean(firstNonEmptyLine(text))
	if refined == "" {
		return fallback
	}
	return truncateChars(refined, defaultMaxChars)
}
