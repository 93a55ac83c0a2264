package main

import (
	"fmt"

	"github.com/fatih/color"

	"ai-notetaking-be/pkg/council"
)

func printSummary(msg council.AssistantMessage) {
	bold := color.New(color.Bold)

	bold.Println("\nStage 1 — council answers")
	for _, a := range msg.Stage1 {
		label := labelFor(msg.Meta, a.ModelID)
		if a.Err != nil {
			color.Red("  [%s] %s (%s): %v", label, a.ModelID, a.RoleName, a.Err)
			continue
		}
		fmt.Printf("  [%s] %s (%s): %s\n", label, a.ModelID, a.RoleName, truncate(a.Text, 160))
	}

	bold.Println("\nStage 2 — judgements")
	for _, j := range msg.Stage2 {
		if j.Partial {
			color.Yellow("  %s: partial (%s)", j.ModelID, j.PartialReason)
			continue
		}
		fmt.Printf("  %s: ranking %v\n", j.ModelID, j.ParsedRanking)
	}

	bold.Println("\nStage 3 — chairman")
	if msg.Stage3.IsEmpty() {
		color.Red("  (no chairman synthesis produced)")
	} else {
		fmt.Printf("  base=%s model=%s\n  %s\n", msg.Stage3.BaseLabel, msg.Stage3.ModelID, truncate(msg.Stage3.Text, 400))
	}

	bold.Println("\nConsensus")
	fmt.Printf("  top1=%s support=%.2f evidence_ok_rate=%.2f partial_rate=%.2f divergence_extreme=%v\n",
		msg.Meta.Top1Consensus, msg.Meta.Top1Support, msg.Meta.EvidenceOKRate, msg.Meta.PartialRate, msg.Meta.DivergenceExtreme)

	if len(msg.Meta.Errors) > 0 {
		bold.Println("\nDegraded")
		for _, e := range msg.Meta.Errors {
			color.Yellow("  - %s", e)
		}
	}
}

func labelFor(trace council.DecisionTrace, modelID string) council.Label {
	for label, id := range trace.LabelToModel {
		if id == modelID {
			return label
		}
	}
	return "?"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
