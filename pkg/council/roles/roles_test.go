package roles

import (
	"testing"

	"ai-notetaking-be/pkg/council"
)

func TestLookupKnownModel(t *testing.T) {
	table := NewTable()

	spec := table.Lookup("anthropic/claude-opus-4.5")

	if spec.RoleName != "Chairman" {
		t.Fatalf("expected Chairman role, got %q", spec.RoleName)
	}
}

func TestLookupFallsBackToDefault(t *testing.T) {
	table := NewTable()

	spec := table.Lookup("some/unlisted-model")

	if spec.RoleName != DefaultRole.RoleName {
		t.Fatalf("expected default role %q, got %q", DefaultRole.RoleName, spec.RoleName)
	}
}

func TestAssignHonorsExplicitRoleOverride(t *testing.T) {
	table := NewTable()
	members := []council.CouncilMember{
		{ModelID: "openai/gpt-5.2", RoleName: ""},
		{ModelID: "some/unlisted-model", RoleName: "Wildcard"},
	}

	specs := table.Assign(members)

	if specs[0].RoleName != "Analyst" {
		t.Fatalf("expected Analyst for gpt-5.2, got %q", specs[0].RoleName)
	}
	if specs[1].RoleName != "Wildcard" {
		t.Fatalf("expected override Wildcard, got %q", specs[1].RoleName)
	}
	if specs[1].SystemPrompt != DefaultRole.SystemPrompt {
		t.Fatalf("expected default system prompt to survive the name override")
	}
}
