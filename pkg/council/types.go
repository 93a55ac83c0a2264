// Package council holds the domain types shared across the deliberation
// pipeline: the data model of spec §3, read by every sub-package (roles,
// anonymize, parser, consensus, adjudication, stagerunner, orchestrator,
// events, title, store).
package council

import (
	"encoding/json"
	"errors"
	"time"
)

// MaxLabelCount is the hard cap on council size. N > 26 would need
// multi-character labels (AA, AB, ...); the spec calls this out explicitly
// as undecided, so we reject it rather than guess.
const MaxLabelCount = 26

// Label is a short opaque identifier such as "A" used in Stage-2 prompts to
// hide model identity. Rendered as "Response A" when embedded in text.
type Label string

// RoleSpec is a process-wide, server-side-only constant: a role name paired
// with the system prompt that nudges a model's behavior under that role.
// Never derived from user input.
type RoleSpec struct {
	RoleName     string
	SystemPrompt string
}

// CouncilMember pairs a model with the role it plays in Stage 1.
type CouncilMember struct {
	ModelID  string
	RoleName string
}

// RetryPolicy bounds StageRunner's retry behavior for Transient/Timeout
// errors only.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// CouncilConfig is the process-wide configuration for one orchestrator.
type CouncilConfig struct {
	Members            []CouncilMember
	ChairmanModelID    string
	AdjudicatorModelID string // empty means adjudication can never be dispatched
	TitleModelID       string // empty means title generation stays non-LLM

	Stage1Timeout time.Duration
	Stage2Timeout time.Duration
	Stage3Timeout time.Duration
	TitleTimeout  time.Duration

	Retry RetryPolicy

	MaxPromptBytes int
	ContractStack  string
}

// Stage1Answer is produced exactly once per council member and is immutable
// after creation. It marshals to the wire/persisted shape of spec §3
// (`model_id, role_name, text, error?, latency_ms`); Err is carried
// internally as a Go error and rendered as a plain string on the wire since
// an arbitrary error value has no stable JSON shape of its own.
type Stage1Answer struct {
	ModelID   string
	RoleName  string
	Text      string
	Err       error
	LatencyMs int64
}

// Failed reports whether this council member's Stage-1 call errored.
func (a Stage1Answer) Failed() bool { return a.Err != nil }

type stage1AnswerWire struct {
	ModelID   string `json:"model_id"`
	RoleName  string `json:"role_name"`
	Text      string `json:"text"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// MarshalJSON renders Err as a plain error message string, per §3's
// `error?` field.
func (a Stage1Answer) MarshalJSON() ([]byte, error) {
	w := stage1AnswerWire{ModelID: a.ModelID, RoleName: a.RoleName, Text: a.Text, LatencyMs: a.LatencyMs}
	if a.Err != nil {
		w.Error = a.Err.Error()
	}
	return json.Marshal(w)
}

// UnmarshalJSON is the inverse of MarshalJSON: a non-empty "error" string
// becomes a plain Go error, since the original error's concrete type and
// classification is not recoverable from the wire.
func (a *Stage1Answer) UnmarshalJSON(data []byte) error {
	var w stage1AnswerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.ModelID = w.ModelID
	a.RoleName = w.RoleName
	a.Text = w.Text
	a.LatencyMs = w.LatencyMs
	a.Err = nil
	if w.Error != "" {
		a.Err = errors.New(w.Error)
	}
	return nil
}

// PartialReason enumerates why a Judgement could not be trusted for
// consensus.
type PartialReason string

const (
	PartialReasonEmptyText      PartialReason = "empty_text"
	PartialReasonLineCount      PartialReason = "line_count"
	PartialReasonPlaceholder    PartialReason = "placeholder"
	PartialReasonRankingInvalid PartialReason = "ranking_invalid"
	PartialReasonModelError     PartialReason = "model_error"
	PartialReasonTimeout        PartialReason = "timeout"
)

// Critique holds the strength/flaw extraction for one label within one
// judge's output, plus the evidence tokens the parser extracted from it.
type Critique struct {
	Strength       string   `json:"strength"`
	Flaw           string   `json:"flaw"`
	EvidenceTokens []string `json:"evidence_tokens,omitempty"`
	Placeholder    bool     `json:"placeholder,omitempty"`
	EvidenceOK     bool     `json:"evidence_ok"`
}

// Judgement is one Stage-2 judge's parsed critique-and-ranking output.
type Judgement struct {
	ModelID string `json:"model_id"`

	RawText       string  `json:"raw_text"`
	RankingText   string  `json:"ranking_text"`
	ParsedRanking []Label `json:"parsed_ranking"`

	PerLabelCritiques map[Label]Critique `json:"per_label_critiques"`

	Partial       bool          `json:"partial"`
	PartialReason PartialReason `json:"partial_reason,omitempty"`

	FormatFixUsed bool `json:"format_fix_used"`
	Coerced       bool `json:"coerced"`
	Adjudicator   bool `json:"adjudicator"`
}

// EvidenceOKRate is the fraction of this judge's labels whose critique is
// evidence-ok. Returns 0 when there are no critiques to score.
func (j Judgement) EvidenceOKRate() float64 {
	if len(j.PerLabelCritiques) == 0 {
		return 0
	}
	ok := 0
	for _, c := range j.PerLabelCritiques {
		if c.EvidenceOK {
			ok++
		}
	}
	return float64(ok) / float64(len(j.PerLabelCritiques))
}

// Contribution records one improvement the Chairman pulled in from a
// non-base label.
type Contribution struct {
	Label     Label  `json:"label"`
	Reason    string `json:"reason"`
	Dimension string `json:"dimension"`
}

// Rejection records one suggestion the Chairman explicitly declined.
type Rejection struct {
	Label  Label  `json:"label"`
	Point  string `json:"point"`
	Reason string `json:"reason"`
}

// Stage3Result is the Chairman's synthesis.
type Stage3Result struct {
	ModelID      string         `json:"model_id,omitempty"`
	Text         string         `json:"text,omitempty"`
	BaseLabel    Label          `json:"base_label,omitempty"`
	Contributors []Contribution `json:"contributors,omitempty"`
	Rejections   []Rejection    `json:"rejections,omitempty"`
}

// IsEmpty reports whether Stage 3 produced nothing usable (e.g. Chairman
// timeout) — spec requires stage3 to surface as {} in that case.
func (s Stage3Result) IsEmpty() bool {
	return s.ModelID == "" && s.Text == ""
}

// AdjudicationRecord captures why adjudication fired and what it produced.
type AdjudicationRecord struct {
	TriggeredReason string     `json:"triggered_reason"`
	Result          *Judgement `json:"result,omitempty"`
}

// DecisionTrace is the persisted, user-visible `meta`/`metadata` record.
type DecisionTrace struct {
	LabelToModel      map[Label]string  `json:"label_to_model"`
	ModelRoles        map[string]string `json:"model_roles"`
	AggregateRankings []AggregateRank   `json:"aggregate_rankings"`

	Top1Consensus     Label   `json:"top1_consensus,omitempty"`
	Top1Support       float64 `json:"top1_support"`
	EvidenceOKRate    float64 `json:"evidence_ok_rate"`
	PartialRate       float64 `json:"partial_rate"`
	DivergenceExtreme bool    `json:"divergence_extreme"`

	Errors []string `json:"errors"`

	Adjudication *AdjudicationRecord `json:"adjudication,omitempty"`

	ContractStack string `json:"contract_stack,omitempty"`
}

// AggregateRank is one label's mean rank position across non-partial judges.
type AggregateRank struct {
	Label       Label   `json:"label"`
	ModelID     string  `json:"model_id"`
	AverageRank float64 `json:"average_rank"`
	VoteCount   int     `json:"vote_count"`
}

// AssistantMessage is the schema-stable contract of §6: the five top-level
// fields are always present, even when a stage produced nothing.
type AssistantMessage struct {
	Role string `json:"role"`

	Stage1 []Stage1Answer `json:"stage1"`
	Stage2 []Judgement    `json:"stage2"`
	Stage3 Stage3Result   `json:"stage3"`

	Meta     DecisionTrace `json:"meta"`
	Metadata DecisionTrace `json:"metadata"`
}

// ConversationMessage is one turn in a conversation: either the user's
// prompt, or an assembled AssistantMessage.
type ConversationMessage struct {
	Role      string
	Content   string
	Assistant *AssistantMessage
	CreatedAt time.Time
}

// Conversation is the external conversation-store's unit of storage: an
// ordered, durable message log plus a derived title.
type Conversation struct {
	ID          string
	Title       string
	TitleSource string
	Messages    []ConversationMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
