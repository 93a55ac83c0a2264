// Package consensus scores a set of Stage-2 Judgements into the aggregate
// signals the Orchestrator needs to decide on a base answer and whether to
// escalate to adjudication.
//
// Grounded on spec §4.4; pure, non-blocking, no external dependencies.
package consensus

import (
	"sort"

	"ai-notetaking-be/pkg/council"
)

// Score computes consensus signals over the full judgement set, using only
// the non-partial subset NP for ranking-derived statistics. labelToModel
// resolves each aggregate row's model_id; it may be nil, in which case
// AggregateRank.ModelID is left empty.
func Score(judgements []council.Judgement, labels []council.Label, labelToModel map[council.Label]string) council.DecisionTrace {
	trace := council.DecisionTrace{}

	np := nonPartial(judgements)

	trace.Top1Consensus, trace.Top1Support = top1(np, labels)
	trace.AggregateRankings = aggregateRank(np, labels, labelToModel)
	trace.PartialRate = partialRate(judgements)
	trace.EvidenceOKRate = evidenceOKRate(judgements)
	trace.DivergenceExtreme = divergenceExtreme(np)

	return trace
}

func nonPartial(judgements []council.Judgement) []council.Judgement {
	var out []council.Judgement
	for _, j := range judgements {
		if !j.Partial {
			out = append(out, j)
		}
	}
	return out
}

// top1 returns the label with the most top-1 votes among np, breaking ties
// by lexicographic label order, and the support fraction. If np is empty,
// consensus is undefined: returns ("", 0) and the caller falls back to
// label A.
func top1(np []council.Judgement, labels []council.Label) (council.Label, float64) {
	if len(np) == 0 {
		return "", 0
	}

	counts := make(map[council.Label]int)
	for _, j := range np {
		if len(j.ParsedRanking) == 0 {
			continue
		}
		counts[j.ParsedRanking[0]]++
	}

	ordered := sortedLabelsFromCounts(counts, labels)

	var best council.Label
	bestCount := -1
	for _, label := range ordered {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}

	if bestCount <= 0 {
		return "", 0
	}
	return best, float64(bestCount) / float64(len(np))
}

func sortedLabelsFromCounts(counts map[council.Label]int, labels []council.Label) []council.Label {
	present := make([]council.Label, 0, len(counts))
	for _, l := range labels {
		if _, ok := counts[l]; ok {
			present = append(present, l)
		}
	}
	sort.Slice(present, func(i, j int) bool { return present[i] < present[j] })
	return present
}

// aggregateRank computes the mean rank position (1-indexed, lower is
// better) of every label across np, plus how many judges voted on it.
func aggregateRank(np []council.Judgement, labels []council.Label, labelToModel map[council.Label]string) []council.AggregateRank {
	sums := make(map[council.Label]int)
	counts := make(map[council.Label]int)

	for _, j := range np {
		for pos, label := range j.ParsedRanking {
			sums[label] += pos + 1
			counts[label]++
		}
	}

	out := make([]council.AggregateRank, 0, len(labels))
	for _, label := range labels {
		if counts[label] == 0 {
			continue
		}
		out = append(out, council.AggregateRank{
			Label:       label,
			ModelID:     labelToModel[label],
			AverageRank: float64(sums[label]) / float64(counts[label]),
			VoteCount:   counts[label],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRank != out[j].AverageRank {
			return out[i].AverageRank < out[j].AverageRank
		}
		return out[i].Label < out[j].Label
	})

	return out
}

func partialRate(judgements []council.Judgement) float64 {
	if len(judgements) == 0 {
		return 0
	}
	partial := 0
	for _, j := range judgements {
		if j.Partial {
			partial++
		}
	}
	return float64(partial) / float64(len(judgements))
}

// evidenceOKRate is the mean over all judgements of each judgement's own
// per-label evidence-ok ratio (Judgement.EvidenceOKRate), including partial
// judgements: a judge can still have supplied evidence-ok critiques before
// failing on ranking format.
func evidenceOKRate(judgements []council.Judgement) float64 {
	if len(judgements) == 0 {
		return 0
	}
	sum := 0.0
	for _, j := range judgements {
		sum += j.EvidenceOKRate()
	}
	return sum / float64(len(judgements))
}

// divergenceExtreme reports whether no two judges in np share the same
// top-1 pick. Vacuously false for 0 or 1 judges.
func divergenceExtreme(np []council.Judgement) bool {
	if len(np) < 2 {
		return false
	}
	seen := make(map[council.Label]bool)
	for _, j := range np {
		if len(j.ParsedRanking) == 0 {
			continue
		}
		top := j.ParsedRanking[0]
		if seen[top] {
			return false
		}
		seen[top] = true
	}
	return true
}
