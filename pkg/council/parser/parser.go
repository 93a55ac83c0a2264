// Package parser turns one judge's raw Stage-2 text into a structured
// Judgement: per-label critiques, evidence tokens, and a parsed ranking.
//
// Grounded on ai-notetaking-be's pkg/ai/router.ParseReferences for the
// regexp-plus-string-cleanup parsing idiom (named capture patterns compiled
// once at package scope, a result struct, a deterministic fallback path).
package parser

import (
	"regexp"
	"sort"
	"strings"

	"ai-notetaking-be/pkg/council"
)

// placeholderSentinel is the literal text a judge emits when it has nothing
// to say about a label. Matched case-insensitively as a substring.
const placeholderSentinel = "insufficient signal in text"

// minEvidenceTokenLength is the minimum length of an identifier-like token
// to be considered as evidence. Heuristic, not a proven value.
const minEvidenceTokenLength = 4

var (
	responseLinePattern      = regexp.MustCompile(`(?i)^response\s+([A-Za-z]):\s*(.*)$`)
	responseLineStartPattern = regexp.MustCompile(`(?i)response\s+[A-Za-z]:`)
	strengthPattern      = regexp.MustCompile(`(?i)strength:\s*(.*?)(?:;\s*flaw:|$)`)
	flawPattern           = regexp.MustCompile(`(?i)flaw:\s*(.*)$`)
	finalRankingPattern   = regexp.MustCompile(`(?i)^final_ranking:\s*(.*)$`)
	rankedLabelPattern    = regexp.MustCompile(`(?i)response\s+([A-Za-z])`)
	backtickSpanPattern   = regexp.MustCompile("`([^`]+)`")
	doubleQuoteSpanPattern = regexp.MustCompile(`"([^"]+)"`)
	identifierTokenPattern = regexp.MustCompile(`[A-Za-z0-9_./-]+`)
)

// Parse builds a Judgement from one judge's raw output against the expected
// label set. stage1Texts maps each label to the Stage-1 answer text it
// stands for, for evidence-rule checking.
func Parse(raw string, labels []council.Label, stage1Texts map[council.Label]string) council.Judgement {
	j := council.Judgement{
		RawText:           raw,
		PerLabelCritiques: make(map[council.Label]council.Critique),
	}

	if strings.TrimSpace(raw) == "" {
		j.Partial = true
		j.PartialReason = council.PartialReasonEmptyText
		return j
	}

	lines := normalizeLines(raw)
	expected := len(labels) + 1

	formatFixUsed := false
	if len(lines) != expected {
		fixed, ok := fixLineCount(lines, labels)
		if !ok {
			j.Partial = true
			j.PartialReason = council.PartialReasonLineCount
			return j
		}
		lines = fixed
		formatFixUsed = true
	}
	j.FormatFixUsed = formatFixUsed

	placeholderCount := 0
	for i, label := range labels {
		line := lines[i]
		match := responseLinePattern.FindStringSubmatch(line)
		if match == nil || !strings.EqualFold(match[1], string(label)) {
			// Format fix already reconciled line count; a line that still
			// doesn't match its expected label is treated as an empty
			// critique rather than a hard failure.
			j.PerLabelCritiques[label] = council.Critique{}
			continue
		}

		body := match[2]
		critique := parseCritique(body)

		if isPlaceholder(body) {
			critique.Placeholder = true
			placeholderCount++
		} else {
			critique.EvidenceTokens = extractEvidenceTokens(body)
			critique.EvidenceOK = evidenceMatches(critique.EvidenceTokens, stage1Texts[label])
		}

		j.PerLabelCritiques[label] = critique
	}

	if len(labels) > 0 && float64(placeholderCount)/float64(len(labels)) > 0.25 {
		j.Partial = true
		j.PartialReason = council.PartialReasonPlaceholder
		return j
	}

	rankingLine := lastFinalRankingLine(lines)
	j.RankingText = rankingLine

	ranking, coerced, ok := parseFinalRanking(rankingLine, labels)
	if !ok {
		j.Partial = true
		j.PartialReason = council.PartialReasonRankingInvalid
		j.ParsedRanking = nil
		return j
	}
	j.ParsedRanking = ranking
	j.Coerced = coerced

	return j
}

// normalizeLines trims whitespace and drops empty lines.
func normalizeLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// fixLineCount attempts to reconcile a line count mismatch by discarding
// leading/trailing prose and concatenating any wrapped or run-together
// critique text back into one line per label. It locates every "Response
// <L>:" occurrence in the text preceding the FINAL_RANKING line and treats
// the span between consecutive occurrences as that label's critique.
func fixLineCount(lines []string, labels []council.Label) ([]string, bool) {
	rankingIdx := -1
	for i, line := range lines {
		if finalRankingPattern.MatchString(line) {
			rankingIdx = i
		}
	}
	if rankingIdx == -1 {
		return nil, false
	}

	blob := strings.Join(lines[:rankingIdx], " ")
	starts := responseLineStartPattern.FindAllStringIndex(blob, -1)
	if len(starts) != len(labels) {
		return nil, false
	}

	fixed := make([]string, 0, len(labels)+1)
	for i, start := range starts {
		end := len(blob)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		fixed = append(fixed, strings.TrimSpace(blob[start[0]:end]))
	}
	fixed = append(fixed, lines[rankingIdx])

	return fixed, true
}

// parseCritique extracts Strength/Flaw substrings from a critique body.
// Missing either yields an empty string for that field.
func parseCritique(body string) council.Critique {
	var c council.Critique
	if m := strengthPattern.FindStringSubmatch(body); m != nil {
		c.Strength = strings.TrimSpace(m[1])
	}
	if m := flawPattern.FindStringSubmatch(body); m != nil {
		c.Flaw = strings.TrimSpace(m[1])
	}
	return c
}

// isPlaceholder reports whether body is (or contains) the sentinel the
// judge emits when it has nothing to say about a label.
func isPlaceholder(body string) bool {
	return strings.Contains(strings.ToLower(body), placeholderSentinel)
}

// extractEvidenceTokens pulls candidate evidence spans out of a critique:
// backtick-quoted spans, double-quoted spans, and identifier-like tokens of
// length >= minEvidenceTokenLength.
func extractEvidenceTokens(body string) []string {
	var tokens []string
	seen := make(map[string]bool)

	add := func(tok string) {
		tok = strings.TrimSpace(tok)
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}

	for _, m := range backtickSpanPattern.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	for _, m := range doubleQuoteSpanPattern.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	for _, tok := range identifierTokenPattern.FindAllString(body, -1) {
		if len(tok) >= minEvidenceTokenLength {
			add(tok)
		}
	}

	return tokens
}

// evidenceMatches reports whether at least one token appears as a
// contiguous, case-sensitive substring of the source text, after
// normalizing whitespace in both.
func evidenceMatches(tokens []string, sourceText string) bool {
	if sourceText == "" {
		return false
	}
	normalizedSource := normalizeWhitespace(sourceText)
	for _, tok := range tokens {
		if strings.Contains(normalizedSource, normalizeWhitespace(tok)) {
			return true
		}
	}
	return false
}

var whitespaceRunPattern = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return whitespaceRunPattern.ReplaceAllString(strings.TrimSpace(s), " ")
}

// lastFinalRankingLine returns the last line beginning with FINAL_RANKING:,
// or "" if none is present.
func lastFinalRankingLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if finalRankingPattern.MatchString(lines[i]) {
			return lines[i]
		}
	}
	return ""
}

// parseFinalRanking extracts the ordered, de-duplicated label sequence from
// a FINAL_RANKING line and verifies it is a permutation of labels. If not,
// attempts one coercion pass: append missing labels in alphabetical order,
// drop unknowns and duplicates. Returns ok=false if coercion still fails.
func parseFinalRanking(line string, labels []council.Label) ([]council.Label, bool, bool) {
	m := finalRankingPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false, false
	}

	valid := make(map[council.Label]bool, len(labels))
	for _, l := range labels {
		valid[l] = true
	}

	var ordered []council.Label
	seen := make(map[council.Label]bool)
	sawUnknown := false
	for _, tok := range rankedLabelPattern.FindAllStringSubmatch(m[1], -1) {
		label := council.Label(strings.ToUpper(tok[1]))
		if !valid[label] {
			sawUnknown = true
			continue
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		ordered = append(ordered, label)
	}

	if !sawUnknown && isPermutation(ordered, labels) {
		return ordered, false, true
	}

	// Coercion pass: append any missing labels in alphabetical order.
	coerced := append([]council.Label{}, ordered...)
	for _, l := range sortedLabels(labels) {
		if !seen[l] {
			coerced = append(coerced, l)
			seen[l] = true
		}
	}

	if isPermutation(coerced, labels) {
		return coerced, true, true
	}

	return nil, false, false
}

func isPermutation(candidate, labels []council.Label) bool {
	if len(candidate) != len(labels) {
		return false
	}
	want := make(map[council.Label]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	for _, l := range candidate {
		if !want[l] {
			return false
		}
		delete(want, l)
	}
	return len(want) == 0
}

func sortedLabels(labels []council.Label) []council.Label {
	out := append([]council.Label{}, labels...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Serialize renders a Judgement back into the strict 5-line format, the
// inverse of Parse, used for idempotence checks.
func Serialize(j council.Judgement, labels []council.Label) string {
	var b strings.Builder
	for _, label := range labels {
		c := j.PerLabelCritiques[label]
		strength := c.Strength
		flaw := c.Flaw
		if c.Placeholder {
			strength = "Insufficient signal in text."
			flaw = "Insufficient signal in text."
		}
		b.WriteString("Response ")
		b.WriteString(string(label))
		b.WriteString(": Strength: ")
		b.WriteString(strength)
		b.WriteString("; Flaw: ")
		b.WriteString(flaw)
		b.WriteString("\n")
	}
	b.WriteString("FINAL_RANKING: ")
	parts := make([]string, 0, len(j.ParsedRanking))
	for _, l := range j.ParsedRanking {
		parts = append(parts, "Response "+string(l))
	}
	b.WriteString(strings.Join(parts, " > "))
	return b.String()
}
