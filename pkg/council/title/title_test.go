package title

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestDeriveFromPromptEmptyContent(t *testing.T) {
	if got := DeriveFromPrompt(""); got != "New conversation" {
		t.Fatalf("expected fallback title, got %q", got)
	}
}

func TestDeriveFromPromptStripsMarkupAndTruncates(t *testing.T) {
	got := DeriveFromPrompt("# How do I **design** a retry policy for flaky upstream model calls today?")

	if got == "" || got == "New conversation" {
		t.Fatalf("expected a derived title, got %q", got)
	}
	if containsAny(got, "#", "*") {
		t.Fatalf("expected markup stripped, got %q", got)
	}
}

func TestDeriveFromChairmanUsesFirstLine(t *testing.T) {
	got := DeriveFromChairman("## Retry policy recommendation\nThe rest of the synthesis goes here.")

	if got != "Retry policy recommendation" {
		t.Fatalf("unexpected title: %q", got)
	}
}

func TestDeriveFromChairmanEmptyYieldsEmpty(t *testing.T) {
	if got := DeriveFromChairman(""); got != "" {
		t.Fatalf("expected empty result for empty input, got %q", got)
	}
}

func TestTruncateCharsCutsOnRuneBoundary(t *testing.T) {
	line := strings.Repeat("café🎉日本語", 20)

	got := truncateChars(line, 10)

	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got invalid string %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected truncation ellipsis, got %q", got)
	}
}

func TestRefineFallsBackWithoutClient(t *testing.T) {
	g := &Generator{}
	got := g.Refine(context.Background(), "hello", "fallback title", time.Now().Add(time.Second))
	if got != "fallback title" {
		t.Fatalf("expected fallback title, got %q", got)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) > 0 {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}
