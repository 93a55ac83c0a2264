// Package anonymize assigns opaque labels to Stage-1 answers before they are
// shown back to the council for Stage 2, so judges critique text rather than
// a model's reputation.
//
// Grounded on spec §4.2; the bijection/toPublic split mirrors how
// ai-notetaking-be's pkg/events keeps a public event shape separate from the
// internal state it was built from.
package anonymize

import (
	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/cerr"
)

// LabelMap is a bijection between {A, B, C, ...} and the subset of council
// models whose Stage-1 call did not error. Labels are assigned in config
// index order, skipping any answer whose Err is set.
type LabelMap struct {
	labelToModel map[council.Label]string
	modelToLabel map[string]council.Label
	order        []council.Label
}

// Build assigns labels to answers in slice order, skipping failed answers.
// Returns an error if there are more surviving answers than MaxLabelCount.
func Build(answers []council.Stage1Answer) (*LabelMap, error) {
	lm := &LabelMap{
		labelToModel: make(map[council.Label]string),
		modelToLabel: make(map[string]council.Label),
	}

	next := 0
	for _, a := range answers {
		if a.Failed() {
			continue
		}
		if next >= council.MaxLabelCount {
			return nil, cerr.New(cerr.KindConsensusUndefined, "council size exceeds label capacity")
		}
		label := council.Label(string(rune('A' + next)))
		lm.labelToModel[label] = a.ModelID
		lm.modelToLabel[a.ModelID] = label
		lm.order = append(lm.order, label)
		next++
	}

	return lm, nil
}

// Labels returns the assigned labels in assignment order.
func (lm *LabelMap) Labels() []council.Label {
	out := make([]council.Label, len(lm.order))
	copy(out, lm.order)
	return out
}

// ModelFor returns the model id behind a label, if any.
func (lm *LabelMap) ModelFor(label council.Label) (string, bool) {
	modelID, ok := lm.labelToModel[label]
	return modelID, ok
}

// LabelFor returns the label assigned to a model id, if it survived Stage 1.
func (lm *LabelMap) LabelFor(modelID string) (council.Label, bool) {
	label, ok := lm.modelToLabel[modelID]
	return label, ok
}

// ToModelMap exposes the full label->model reverse map, for the Orchestrator
// to fold into the DecisionTrace. Judges never see this.
func (lm *LabelMap) ToModelMap() map[council.Label]string {
	out := make(map[council.Label]string, len(lm.labelToModel))
	for k, v := range lm.labelToModel {
		out[k] = v
	}
	return out
}

// PublicAnswer is the only shape judges ever see: a label and text, no model
// identity attached.
type PublicAnswer struct {
	Label council.Label
	Text  string
}

// ToPublic renders the surviving Stage-1 answers as label/text pairs, in
// label order, for embedding into Stage-2 prompts.
func ToPublic(answers []council.Stage1Answer, lm *LabelMap) []PublicAnswer {
	byModel := make(map[string]string, len(answers))
	for _, a := range answers {
		if !a.Failed() {
			byModel[a.ModelID] = a.Text
		}
	}

	out := make([]PublicAnswer, 0, len(lm.order))
	for _, label := range lm.order {
		modelID := lm.labelToModel[label]
		out = append(out, PublicAnswer{Label: label, Text: byModel[modelID]})
	}
	return out
}
