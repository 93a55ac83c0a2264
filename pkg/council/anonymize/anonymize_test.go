package anonymize

import (
	"errors"
	"testing"

	"ai-notetaking-be/pkg/council"
)

func TestBuildSkipsFailedAnswers(t *testing.T) {
	answers := []council.Stage1Answer{
		{ModelID: "m1", Text: "hello"},
		{ModelID: "m2", Err: errors.New("boom")},
		{ModelID: "m3", Text: "world"},
	}

	lm, err := Build(answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	labels := lm.Labels()
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %d (%v)", len(labels), labels)
	}
	if labels[0] != "A" || labels[1] != "B" {
		t.Fatalf("expected A, B in config order, got %v", labels)
	}

	if modelID, ok := lm.ModelFor("A"); !ok || modelID != "m1" {
		t.Fatalf("expected A -> m1, got %q, %v", modelID, ok)
	}
	if modelID, ok := lm.ModelFor("B"); !ok || modelID != "m3" {
		t.Fatalf("expected B -> m3, got %q, %v", modelID, ok)
	}
	if _, ok := lm.LabelFor("m2"); ok {
		t.Fatalf("expected failed model m2 to have no label")
	}
}

func TestToPublicHidesModelIdentity(t *testing.T) {
	answers := []council.Stage1Answer{
		{ModelID: "m1", Text: "first answer"},
		{ModelID: "m2", Text: "second answer"},
	}

	lm, err := Build(answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	public := ToPublic(answers, lm)
	if len(public) != 2 {
		t.Fatalf("expected 2 public answers, got %d", len(public))
	}
	for _, p := range public {
		if p.Text == "" {
			t.Fatalf("expected non-empty text for label %s", p.Label)
		}
	}
	if public[0].Label != "A" || public[0].Text != "first answer" {
		t.Fatalf("unexpected first public answer: %+v", public[0])
	}
}

func TestToModelMapIsACopy(t *testing.T) {
	answers := []council.Stage1Answer{{ModelID: "m1", Text: "x"}}
	lm, err := Build(answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := lm.ToModelMap()
	m["A"] = "tampered"

	if modelID, _ := lm.ModelFor("A"); modelID != "m1" {
		t.Fatalf("expected internal map unaffected by external mutation, got %q", modelID)
	}
}
