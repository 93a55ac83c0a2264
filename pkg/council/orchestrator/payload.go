package orchestrator

import (
	"strings"

	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/anonymize"
	"ai-notetaking-be/pkg/council/cerr"
	"ai-notetaking-be/pkg/council/stagerunner"
)

// stage1AnswerPayload is the wire shape of one answer in a stage1_complete
// event: {model_id, role, text|error}.
type stage1AnswerPayload struct {
	ModelID string `json:"model_id"`
	Role    string `json:"role"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

func stage1AnswersPayload(answers []council.Stage1Answer) []stage1AnswerPayload {
	out := make([]stage1AnswerPayload, len(answers))
	for i, a := range answers {
		p := stage1AnswerPayload{ModelID: a.ModelID, Role: a.RoleName, Text: a.Text}
		if a.Err != nil {
			p.Error = a.Err.Error()
		}
		out[i] = p
	}
	return out
}

type errorEventPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorPayload(err error) errorEventPayload {
	return errorEventPayload{Kind: string(cerr.KindOf(err)), Message: err.Error()}
}

type titleEventPayload struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

func titlePayload(titleText, source string) titleEventPayload {
	return titleEventPayload{Title: titleText, Source: source}
}

// judgeCandidates is the Stage-2 dispatch list: the council minus any
// member whose Stage-1 call produced a permanent error, per spec §4.7 step
// 3 ("usually same set as council, minus any with permanent errors").
func judgeCandidates(stage1 []council.Stage1Answer, members []council.CouncilMember) []string {
	failed := make(map[string]bool, len(stage1))
	for _, a := range stage1 {
		if a.Err != nil && cerr.KindOf(a.Err) == cerr.KindModelPermanent {
			failed[a.ModelID] = true
		}
	}

	out := make([]string, 0, len(members))
	for _, m := range members {
		if !failed[m.ModelID] {
			out = append(out, m.ModelID)
		}
	}
	return out
}

func modelErrorReason(r stagerunner.Result) council.PartialReason {
	switch cerr.KindOf(r.Err) {
	case cerr.KindModelTimeout:
		return council.PartialReasonTimeout
	default:
		return council.PartialReasonModelError
	}
}

func publicTextsByLabel(answers []anonymize.PublicAnswer) map[council.Label]string {
	out := make(map[council.Label]string, len(answers))
	for _, a := range answers {
		out[a.Label] = a.Text
	}
	return out
}

func mergeConsensus(decision, scored council.DecisionTrace) council.DecisionTrace {
	decision.Top1Consensus = scored.Top1Consensus
	decision.Top1Support = scored.Top1Support
	decision.AggregateRankings = scored.AggregateRankings
	decision.PartialRate = scored.PartialRate
	decision.EvidenceOKRate = scored.EvidenceOKRate
	decision.DivergenceExtreme = scored.DivergenceExtreme
	return decision
}

func roleNamesByModel(members []council.CouncilMember, specs []council.RoleSpec) map[string]string {
	out := make(map[string]string, len(members))
	for i, m := range members {
		out[m.ModelID] = specs[i].RoleName
	}
	return out
}

// buildJudgePrompt assembles the Stage-2 user prompt: the anonymized
// answers plus the strict 5-line format instruction.
func buildJudgePrompt(answers []anonymize.PublicAnswer, labels []council.Label) string {
	var b strings.Builder

	b.WriteString("Here are the anonymized responses to the user's prompt:\n\n")
	for _, a := range answers {
		b.WriteString("Response ")
		b.WriteString(string(a.Label))
		b.WriteString(":\n")
		b.WriteString(a.Text)
		b.WriteString("\n\n")
	}

	b.WriteString("For each response, respond with exactly one line in this format:\n")
	b.WriteString("Response X: Strength: <one sentence citing specific evidence>; Flaw: <one sentence citing specific evidence>\n")
	b.WriteString("List every response, one per line, then a final line:\n")
	b.WriteString("FINAL_RANKING: Response ")
	b.WriteString(joinLabels(labels, " > Response "))
	b.WriteString(" (in your own ranked order, best first)\n")

	return b.String()
}

// buildChairmanPrompt assembles the Stage-3 user prompt: the full
// anonymized Stage-1 set, the consensus base label and aggregate ranks,
// and the rubric dimensions.
func buildChairmanPrompt(answers []anonymize.PublicAnswer, decision council.DecisionTrace, labels []council.Label) string {
	var b strings.Builder

	b.WriteString("The council produced these anonymized responses to the user's prompt:\n\n")
	for _, a := range answers {
		b.WriteString("Response ")
		b.WriteString(string(a.Label))
		b.WriteString(":\n")
		b.WriteString(a.Text)
		b.WriteString("\n\n")
	}

	if decision.Top1Consensus != "" {
		b.WriteString("The council's consensus base answer is Response ")
		b.WriteString(string(decision.Top1Consensus))
		b.WriteString(".\n")
	} else {
		b.WriteString("The council reached no clear consensus base answer.\n")
	}

	if len(decision.AggregateRankings) > 0 {
		b.WriteString("Aggregate ranking (best first): ")
		for i, r := range decision.AggregateRankings {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(r.Label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nChoose a base answer, incorporate valid improvements from other responses, and explicitly reject invalid suggestions. ")
	b.WriteString("Evaluate using these rubric dimensions: correctness, completeness, actionability, risk_safety, clarity, contract_compliance.\n")

	return b.String()
}

func joinLabels(labels []council.Label, sep string) string {
	strs := make([]string, len(labels))
	for i, l := range labels {
		strs[i] = string(l)
	}
	return strings.Join(strs, sep)
}

func joinSystemMessages(messages []string) string {
	return strings.Join(messages, "\n\n")
}
