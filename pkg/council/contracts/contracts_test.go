package contracts

import "testing"

func TestParseStackAlwaysLeadsWithFactoryBase(t *testing.T) {
	ids := ParseStack("eldercare_safety_v1")

	if len(ids) != 2 || ids[0] != FactoryTruthV1.ContractID || ids[1] != "eldercare_safety_v1" {
		t.Fatalf("unexpected stack: %v", ids)
	}
}

func TestParseStackDedupesExplicitBase(t *testing.T) {
	ids := ParseStack("factory_truth_v1, eldercare_safety_v1")

	if len(ids) != 2 {
		t.Fatalf("expected factory base deduped, got %v", ids)
	}
}

func TestParseStackEmptyInputYieldsBaseOnly(t *testing.T) {
	ids := ParseStack("")

	if len(ids) != 1 || ids[0] != FactoryTruthV1.ContractID {
		t.Fatalf("expected base-only stack, got %v", ids)
	}
}

func TestBuildChairmanSystemMessagesIncludesAddenda(t *testing.T) {
	msgs, err := BuildChairmanSystemMessages("eldercare_safety_v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m == "" {
			t.Fatalf("expected non-empty chairman message")
		}
	}
}

func TestGetUnknownContract(t *testing.T) {
	if _, err := Get("not_a_real_contract"); err == nil {
		t.Fatalf("expected error for unknown contract id")
	}
}
