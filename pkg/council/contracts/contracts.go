// Package contracts holds the layered system-prompt contracts a council run
// can be configured with: a product-agnostic base contract always applied,
// plus optional product-specific addenda.
//
// Grounded on the reference council's backend/contracts.py; carried over as
// a supplemental feature since spec.md's distillation dropped it in favor of
// a single opaque ContractStack string on CouncilConfig.
package contracts

import (
	"fmt"
	"strings"
)

// ContractSpec is a single layer of the contract stack.
type ContractSpec struct {
	ContractID       string
	Name             string
	SystemPrompt     string
	ChairmanAddendum string
}

// FactoryTruthV1 is the base contract, always applied first regardless of
// what the caller requests.
var FactoryTruthV1 = ContractSpec{
	ContractID: "factory_truth_v1",
	Name:       "Factory Truth-First v1",
	SystemPrompt: "You are running inside a product-agnostic LLM Council factory.\n" +
		"Factory Contract (must follow):\n" +
		"1) Truth-first: prioritize what is most likely true about the user's real problem; state uncertainty explicitly.\n" +
		"2) Separate facts from guesses: tag non-trivial claims as [Observed] / [Assumed] / [Inferred]; do not blur them.\n" +
		"3) Ask at most 1 killer question only if it would materially change the recommendation; otherwise proceed with best-guess + assumptions.\n" +
		"4) Smallest valuable action: propose something testable this week with minimal build; avoid dependencies and platform thinking.\n" +
		"5) One primary risk: name the single highest-risk failure mode and add one simple guardrail.\n" +
		"6) One metric that matters: pick one leading indicator; define a clear pass/fail threshold.\n" +
		"7) Design for the edge user: handle the most constrained path (low attention, low literacy, high stress) by default.\n" +
		"8) Make it legible: include a short rationale and a clear next step; no jargon; no sprawling option lists.\n" +
		"9) Creativity inside constraints: propose at most 2 variants (Conservative baseline + Bold alternative), both testable.\n" +
		"10) Synthesis discipline: do not introduce new mechanisms unless you label them [New Proposal] and explain why.\n" +
		"11) No emojis: do not use emojis unless the user explicitly uses emojis first.\n" +
		"Keep outputs concise and practical.\n",
	ChairmanAddendum: "Chairman: ensure the final answer is traceable to council inputs. " +
		"If you introduce anything not present in Stage 1/2, label it [New Proposal] and justify it briefly.\n",
}

// EldercareSafetyV1 is an example product addendum, layered on top of the
// base contract when requested.
var EldercareSafetyV1 = ContractSpec{
	ContractID: "eldercare_safety_v1",
	Name:       "Eldercare Safety v1",
	SystemPrompt: "Product Addendum (elder-care safety):\n" +
		"- Do not provide medical diagnosis or dosing advice. Default to safe-hold instructions and escalation.\n" +
		"- For scam-risk: prioritize immediate 'stop/hold' guidance; avoid asking for sensitive info.\n" +
		"- For caregiver escalation: prioritize burnout controls (rate limits, batching, quiet hours) while preserving safety overrides.\n" +
		"- Be explicit about consent/privacy when capturing audio; keep retention minimal.\n",
	ChairmanAddendum: "Chairman: keep the result minimal and safe; avoid compliance theater; prefer simple guardrails.\n",
}

var registry = map[string]ContractSpec{
	FactoryTruthV1.ContractID:    FactoryTruthV1,
	EldercareSafetyV1.ContractID: EldercareSafetyV1,
}

// Get returns the named contract, or an error if it is not registered.
func Get(contractID string) (ContractSpec, error) {
	spec, ok := registry[contractID]
	if !ok {
		return ContractSpec{}, fmt.Errorf("unknown contract_id: %s", contractID)
	}
	return spec, nil
}

// ParseStack splits a comma-separated contract-stack string into contract
// IDs, always placing the factory base contract first and never duplicating
// it even if the caller also named it explicitly.
func ParseStack(contractStack string) []string {
	var ids []string
	for _, raw := range strings.Split(contractStack, ",") {
		id := strings.TrimSpace(raw)
		if id != "" && id != FactoryTruthV1.ContractID {
			ids = append(ids, id)
		}
	}
	return append([]string{FactoryTruthV1.ContractID}, ids...)
}

// BuildSystemMessages returns the system-prompt text for every layer in the
// stack, for a council member (no chairman addenda).
func BuildSystemMessages(contractStack string) ([]string, error) {
	var out []string
	for _, id := range ParseStack(contractStack) {
		spec, err := Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, spec.SystemPrompt)
	}
	return out, nil
}

// BuildChairmanSystemMessages is the same as BuildSystemMessages but appends
// each layer's chairman addendum, when present.
func BuildChairmanSystemMessages(contractStack string) ([]string, error) {
	var out []string
	for _, id := range ParseStack(contractStack) {
		spec, err := Get(id)
		if err != nil {
			return nil, err
		}
		content := spec.SystemPrompt
		if spec.ChairmanAddendum != "" {
			content += "\n" + spec.ChairmanAddendum
		}
		out = append(out, content)
	}
	return out, nil
}

// Summary is a short, human-readable description for logs and DecisionTrace.
func Summary(contractStack string) string {
	ids := ParseStack(contractStack)
	summary := "Contracts applied:"
	for i, id := range ids {
		spec, err := Get(id)
		if err != nil {
			continue
		}
		if i > 0 {
			summary += " +"
		}
		summary += fmt.Sprintf(" %s (%s)", id, spec.Name)
	}
	return summary
}
