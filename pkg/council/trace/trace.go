// Package trace assembles the schema-stable assistant message the
// Orchestrator hands to the conversation store and to the event stream's
// final complete payload.
package trace

import "ai-notetaking-be/pkg/council"

// BuildAssistantMessage assembles the five-field assistant message. Empty
// stages are valid: no placeholder content is ever substituted for a
// missing stage, since emptiness itself is the signal a client reads.
func BuildAssistantMessage(stage1 []council.Stage1Answer, stage2 []council.Judgement, stage3 council.Stage3Result, decision council.DecisionTrace) council.AssistantMessage {
	if stage1 == nil {
		stage1 = []council.Stage1Answer{}
	}
	if stage2 == nil {
		stage2 = []council.Judgement{}
	}

	return council.AssistantMessage{
		Role:     "assistant",
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Meta:     decision,
		Metadata: decision,
	}
}

// WithModelRoles sets a trace's ModelRoles map (role name keyed by model id)
// to roleByModel, replacing any previous map.
func WithModelRoles(decision council.DecisionTrace, roleByModel map[string]string) council.DecisionTrace {
	decision.ModelRoles = roleByModel
	return decision
}

// AppendError records a non-fatal failure into the trace without raising:
// per spec, only StoreFailure on the final append also emits an error
// event; everything else here is recorded and the run degrades gracefully.
func AppendError(decision council.DecisionTrace, msg string) council.DecisionTrace {
	decision.Errors = append(decision.Errors, msg)
	return decision
}
