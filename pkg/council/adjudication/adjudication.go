// Package adjudication decides whether a council run's Stage-2 consensus is
// weak enough to warrant one extra, independent re-judge, and builds that
// judge's prompt.
//
// Grounded on spec §4.5; off by default, triggered only by the four
// threshold conditions below.
package adjudication

import (
	"fmt"
	"strings"

	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/anonymize"
)

// RubricDimensions are the evaluation axes the adjudicator (and the
// Chairman) are asked to reason over explicitly.
var RubricDimensions = []string{
	"correctness", "completeness", "actionability", "risk_safety", "clarity", "contract_compliance",
}

const (
	top1SupportThreshold    = 0.60
	evidenceOKRateThreshold = 0.75
	partialRateThreshold    = 0.10
)

// ShouldTrigger evaluates the four threshold conditions in the order the
// spec lists them, returning the first one that fires. ok is false when
// none fire and adjudication should not run.
func ShouldTrigger(trace council.DecisionTrace) (reason string, ok bool) {
	switch {
	case trace.Top1Support < top1SupportThreshold:
		return fmt.Sprintf("top1_support<%.2f", top1SupportThreshold), true
	case trace.EvidenceOKRate < evidenceOKRateThreshold:
		return fmt.Sprintf("evidence_ok_rate<%.2f", evidenceOKRateThreshold), true
	case trace.PartialRate > partialRateThreshold:
		return fmt.Sprintf("partial_rate>%.2f", partialRateThreshold), true
	case trace.DivergenceExtreme:
		return "divergence_extreme", true
	default:
		return "", false
	}
}

// BuildPrompt assembles the single adjudicator prompt: the anonymized
// Stage-1 answers, every Stage-2 judge's rationale, and the rubric
// dimensions, in the same strict-5-line format Stage-2 judges were asked
// to follow.
func BuildPrompt(publicAnswers []anonymize.PublicAnswer, judgements []council.Judgement, labels []council.Label) string {
	var b strings.Builder

	b.WriteString("You are adjudicating a council deliberation where the existing judges disagreed or produced unreliable critiques.\n\n")
	b.WriteString("Anonymized responses:\n")
	for _, a := range publicAnswers {
		b.WriteString("Response ")
		b.WriteString(string(a.Label))
		b.WriteString(":\n")
		b.WriteString(a.Text)
		b.WriteString("\n\n")
	}

	b.WriteString("Existing judge rationales (for context only, do not defer to them):\n")
	for i, j := range judgements {
		if j.RawText == "" {
			continue
		}
		fmt.Fprintf(&b, "Judge %d:\n%s\n\n", i+1, j.RawText)
	}

	b.WriteString("Evaluate using these rubric dimensions: ")
	b.WriteString(strings.Join(RubricDimensions, ", "))
	b.WriteString(".\n\n")

	b.WriteString("Respond in exactly this format, one line per response then a final ranking line:\n")
	for _, label := range labels {
		fmt.Fprintf(&b, "Response %s: Strength: <s>; Flaw: <f>\n", label)
	}
	b.WriteString("FINAL_RANKING: Response X > Response Y > ...\n")

	return b.String()
}

// Merge applies an adjudicator's Judgement onto the existing trace: if the
// adjudicator's ranking is non-partial, its top-1 pick overrides
// Top1Consensus (support fixed at 1.0, since the adjudicator speaks alone).
// Otherwise the original consensus is kept and the failure is recorded.
func Merge(trace council.DecisionTrace, triggeredReason string, result council.Judgement) council.DecisionTrace {
	record := &council.AdjudicationRecord{
		TriggeredReason: triggeredReason,
		Result:          &result,
	}
	trace.Adjudication = record

	if result.Partial || len(result.ParsedRanking) == 0 {
		trace.Errors = append(trace.Errors, "adjudication failed to produce a usable ranking: "+string(result.PartialReason))
		return trace
	}

	trace.Top1Consensus = result.ParsedRanking[0]
	trace.Top1Support = 1.0
	return trace
}
