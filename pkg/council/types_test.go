package council

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStage1AnswerJSONRoundTripWithError(t *testing.T) {
	original := Stage1Answer{
		ModelID:   "openai/gpt-5.2",
		RoleName:  "Analyst",
		Text:      "",
		Err:       errors.New("upstream returned 503"),
		LatencyMs: 42,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Stage1Answer
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ModelID != original.ModelID || decoded.RoleName != original.RoleName {
		t.Fatalf("identity fields did not round-trip: got %+v", decoded)
	}
	if decoded.LatencyMs != original.LatencyMs {
		t.Fatalf("latency did not round-trip: got %d", decoded.LatencyMs)
	}
	if !decoded.Failed() || decoded.Err.Error() != "upstream returned 503" {
		t.Fatalf("error did not round-trip: got %v", decoded.Err)
	}
}

func TestStage1AnswerJSONRoundTripWithoutError(t *testing.T) {
	original := Stage1Answer{ModelID: "anthropic/claude-sonnet-4.5", RoleName: "Critic", Text: "the analysis is sound", LatencyMs: 1200}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if hasErrorField(t, data) {
		t.Fatalf("error field should be omitted when nil: %s", data)
	}

	var decoded Stage1Answer
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Failed() {
		t.Fatalf("expected no error, got %v", decoded.Err)
	}
	if decoded.Text != original.Text {
		t.Fatalf("text did not round-trip: got %q", decoded.Text)
	}
}

func hasErrorField(t *testing.T, data []byte) bool {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	_, ok := raw["error"]
	return ok
}
