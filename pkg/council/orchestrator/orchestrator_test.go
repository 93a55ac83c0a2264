package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/cerr"
	"ai-notetaking-be/pkg/council/events"
	"ai-notetaking-be/pkg/council/roles"
	"ai-notetaking-be/pkg/council/store"
)

// fakeResponse is one canned reply a fakeClient hands back for one call.
type fakeResponse struct {
	text string
	err  error
}

// fakeClient is a scripted llm.ModelClient: each model id has its own queue
// of responses, consumed in call order.
type fakeClient struct {
	mu            sync.Mutex
	responses     map[string][]fakeResponse
	calls         map[string]int
	systemPrompts map[string][]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		responses:     make(map[string][]fakeResponse),
		calls:         make(map[string]int),
		systemPrompts: make(map[string][]string),
	}
}

func (f *fakeClient) script(modelID string, responses ...fakeResponse) *fakeClient {
	f.responses[modelID] = append(f.responses[modelID], responses...)
	return f
}

func (f *fakeClient) Complete(ctx context.Context, modelID, systemPrompt, userPrompt string, deadline time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.systemPrompts[modelID] = append(f.systemPrompts[modelID], systemPrompt)

	queue := f.responses[modelID]
	idx := f.calls[modelID]
	f.calls[modelID]++
	if idx >= len(queue) {
		return "", cerr.New(cerr.KindModelPermanent, "fakeClient: no response queued for "+modelID)
	}
	return queue[idx].text, queue[idx].err
}

// systemPromptsFor returns every system prompt fakeClient recorded for
// modelID, in call order.
func (f *fakeClient) systemPromptsFor(modelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.systemPrompts[modelID]...)
}

func baseConfig(members ...string) council.CouncilConfig {
	m := make([]council.CouncilMember, len(members))
	for i, modelID := range members {
		m[i] = council.CouncilMember{ModelID: modelID}
	}
	return council.CouncilConfig{
		Members:         m,
		ChairmanModelID: "chairman",
		Stage1Timeout:   time.Second,
		Stage2Timeout:   time.Second,
		Stage3Timeout:   time.Second,
		TitleTimeout:    time.Second,
		Retry:           council.RetryPolicy{MaxAttempts: 1, BackoffBase: time.Millisecond, BackoffCap: time.Millisecond},
		MaxPromptBytes:  10_000,
	}
}

// wellFormedJudgement builds a strict 5-line-format judgement body: one
// critique line per letter in labels (e.g. "ABC"), then a FINAL_RANKING
// line in the given order.
func wellFormedJudgement(labels string, ranking string) string {
	critiques := []string{
		"Strength: good structure; Flaw: thin detail",
		"Strength: thorough; Flaw: verbose",
		"Strength: concise; Flaw: shallow",
		"Strength: clear; Flaw: narrow",
	}

	var b strings.Builder
	for i := 0; i < len(labels); i++ {
		b.WriteString("Response ")
		b.WriteByte(labels[i])
		b.WriteString(": ")
		b.WriteString(critiques[i%len(critiques)])
		b.WriteString("\n")
	}
	b.WriteString("FINAL_RANKING: " + ranking)
	return b.String()
}

func newOrchestrator(cfg council.CouncilConfig, client *fakeClient) *orchestrator {
	o := New(cfg, client, roles.NewTable(), store.NewMemoryStore(), events.NewBus(nil), nil)
	return o.(*orchestrator)
}

// newConversation creates a conversation up front, the way the transport
// layer does before handing a prompt to Run, and returns its id.
func newConversation(t *testing.T, o *orchestrator) string {
	t.Helper()
	c, err := o.convStore.Create(context.Background())
	if err != nil {
		t.Fatalf("unexpected error creating conversation: %v", err)
	}
	return c.ID
}

func TestRunHappyPathProducesFullTrace(t *testing.T) {
	client := newFakeClient().
		script("m1", fakeResponse{text: "Answer from m1 with concrete steps."}).
		script("m2", fakeResponse{text: "Answer from m2 with more detail."}).
		script("m3", fakeResponse{text: "Answer from m3, concise."}).
		script("m1", fakeResponse{text: wellFormedJudgement("ABC", "Response A > Response B > Response C")}).
		script("m2", fakeResponse{text: wellFormedJudgement("ABC", "Response A > Response C > Response B")}).
		script("m3", fakeResponse{text: wellFormedJudgement("ABC", "Response A > Response B > Response C")}).
		script("chairman", fakeResponse{text: "Final synthesized answer pulling from Response A and Response C."})

	o := newOrchestrator(baseConfig("m1", "m2", "m3"), client)
	cid := newConversation(t, o)

	msg, err := o.Run(context.Background(), cid, "How should I structure this migration?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.Stage1) != 3 {
		t.Fatalf("expected 3 stage1 answers, got %d", len(msg.Stage1))
	}
	if len(msg.Stage2) != 3 {
		t.Fatalf("expected 3 stage2 judgements, got %d", len(msg.Stage2))
	}
	if msg.Stage3.IsEmpty() {
		t.Fatalf("expected a non-empty stage3 result")
	}
	if msg.Meta.Top1Consensus != "A" {
		t.Fatalf("expected consensus label A, got %q", msg.Meta.Top1Consensus)
	}
	if len(msg.Meta.LabelToModel) != 3 {
		t.Fatalf("expected 3 labels in LabelToModel, got %d", len(msg.Meta.LabelToModel))
	}
}

func TestRunEmptyPromptIsFatal(t *testing.T) {
	client := newFakeClient()
	o := newOrchestrator(baseConfig("m1"), client)

	_, err := o.Run(context.Background(), "conv-1", "")
	if err == nil {
		t.Fatalf("expected error for empty prompt")
	}
	if cerr.KindOf(err) != cerr.KindPromptTooLarge {
		t.Fatalf("expected PromptTooLarge, got %v", cerr.KindOf(err))
	}
}

func TestRunOversizedPromptIsFatal(t *testing.T) {
	client := newFakeClient()
	cfg := baseConfig("m1")
	cfg.MaxPromptBytes = 4
	o := newOrchestrator(cfg, client)

	_, err := o.Run(context.Background(), "conv-1", "this prompt is far too long")
	if err == nil || cerr.KindOf(err) != cerr.KindPromptTooLarge {
		t.Fatalf("expected PromptTooLarge, got %v", err)
	}
}

func TestRunMissingConfigIsFatal(t *testing.T) {
	client := newFakeClient()
	cfg := council.CouncilConfig{} // no members
	o := newOrchestrator(cfg, client)

	_, err := o.Run(context.Background(), "conv-1", "hello")
	if err == nil || cerr.KindOf(err) != cerr.KindConfigMissing {
		t.Fatalf("expected ConfigMissing, got %v", err)
	}
}

// One council member fails permanently at Stage 1: the survivor set still
// produces a usable trace, and the failed model is excluded from Stage 2
// judging.
func TestRunStage1PermanentErrorDegradesGracefully(t *testing.T) {
	client := newFakeClient().
		script("m1", fakeResponse{text: "Answer from m1."}).
		script("m2", fakeResponse{err: cerr.New(cerr.KindModelPermanent, "quota exceeded")}).
		script("m1", fakeResponse{text: wellFormedJudgement("A", "Response A")}).
		script("chairman", fakeResponse{text: "Final answer."})

	o := newOrchestrator(baseConfig("m1", "m2"), client)
	cid := newConversation(t, o)

	msg, err := o.Run(context.Background(), cid, "what should I build first?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Stage1) != 2 {
		t.Fatalf("expected 2 stage1 answers (one failed), got %d", len(msg.Stage1))
	}
	if len(msg.Stage2) != 1 {
		t.Fatalf("expected 1 judge (the survivor), got %d", len(msg.Stage2))
	}
	if msg.Stage3.IsEmpty() {
		t.Fatalf("expected stage3 to still complete")
	}
}

// A configured contract stack reaches every Stage-1 member call and every
// Stage-2 judge call, not only the Chairman.
func TestRunContractStackReachesMembersAndJudges(t *testing.T) {
	client := newFakeClient().
		script("m1", fakeResponse{text: "Answer one."}).
		script("m2", fakeResponse{text: "Answer two."}).
		script("m1", fakeResponse{text: wellFormedJudgement("AB", "Response A > Response B")}).
		script("m2", fakeResponse{text: wellFormedJudgement("AB", "Response A > Response B")}).
		script("chairman", fakeResponse{text: "Final answer."})

	cfg := baseConfig("m1", "m2")
	cfg.ContractStack = "eldercare_safety_v1"
	o := newOrchestrator(cfg, client)
	cid := newConversation(t, o)

	if _, err := o.Run(context.Background(), cid, "how do I help my parent?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const marker = "elder-care safety"
	for _, modelID := range []string{"m1", "m2"} {
		prompts := client.systemPromptsFor(modelID)
		if len(prompts) != 2 {
			t.Fatalf("expected 2 calls for %s (stage1 + stage2), got %d", modelID, len(prompts))
		}
		for i, p := range prompts {
			if !strings.Contains(p, marker) {
				t.Fatalf("expected call %d for %s to include the contract stack, got %q", i, modelID, p)
			}
		}
	}
}

// Every council member errors permanently at Stage 1: Stage 2 and Stage 3
// are skipped entirely, the cause is recorded in meta.errors, and the
// response is still a well-formed, persisted assistant message.
func TestRunZeroSurvivingStage1AnswersSkipsStage2And3(t *testing.T) {
	client := newFakeClient().
		script("m1", fakeResponse{err: cerr.New(cerr.KindModelPermanent, "quota exceeded")}).
		script("m2", fakeResponse{err: cerr.New(cerr.KindModelPermanent, "quota exceeded")})

	o := newOrchestrator(baseConfig("m1", "m2"), client)
	cid := newConversation(t, o)

	msg, err := o.Run(context.Background(), cid, "what should I build first?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Stage1) != 2 {
		t.Fatalf("expected 2 stage1 answers (both failed), got %d", len(msg.Stage1))
	}
	if len(msg.Stage2) != 0 {
		t.Fatalf("expected stage2 to be skipped, got %d judgements", len(msg.Stage2))
	}
	if !msg.Stage3.IsEmpty() {
		t.Fatalf("expected stage3 to be skipped (empty), got %+v", msg.Stage3)
	}
	if len(msg.Meta.Errors) == 0 {
		t.Fatalf("expected meta.errors to record the zero-survivors cause")
	}
	if msg.Meta.Top1Consensus != "" {
		t.Fatalf("expected undefined consensus, got %q", msg.Meta.Top1Consensus)
	}

	loaded, loadErr := o.convStore.Load(context.Background(), cid)
	if loadErr != nil {
		t.Fatalf("unexpected load error: %v", loadErr)
	}
	if loaded == nil {
		t.Fatalf("expected the run to have persisted a conversation")
	}
}

// A judge emits too many placeholder critiques: the judgement is marked
// Partial and excluded from consensus, but the run still completes.
func TestRunPlaceholderMajorityMarksJudgementPartial(t *testing.T) {
	placeholderJudgement := "Response A: Strength: Insufficient signal in text.; Flaw: Insufficient signal in text.\n" +
		"Response B: Strength: Insufficient signal in text.; Flaw: Insufficient signal in text.\n" +
		"Response C: Strength: solid point; Flaw: minor gap\n" +
		"FINAL_RANKING: Response C > Response A > Response B"

	client := newFakeClient().
		script("m1", fakeResponse{text: "Answer one."}).
		script("m2", fakeResponse{text: "Answer two."}).
		script("m3", fakeResponse{text: "Answer three."}).
		script("m1", fakeResponse{text: placeholderJudgement}).
		script("m2", fakeResponse{text: wellFormedJudgement("ABC", "Response A > Response B > Response C")}).
		script("m3", fakeResponse{text: wellFormedJudgement("ABC", "Response A > Response B > Response C")}).
		script("chairman", fakeResponse{text: "Final answer."})

	o := newOrchestrator(baseConfig("m1", "m2", "m3"), client)
	cid := newConversation(t, o)

	msg, err := o.Run(context.Background(), cid, "what are the tradeoffs here?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var partials int
	for _, j := range msg.Stage2 {
		if j.Partial {
			partials++
			if j.PartialReason != council.PartialReasonPlaceholder {
				t.Fatalf("expected placeholder partial reason, got %v", j.PartialReason)
			}
		}
	}
	if partials != 1 {
		t.Fatalf("expected exactly 1 partial judgement, got %d", partials)
	}
}

// Weak consensus (no ranking line, so only 1/3 judges vote) triggers
// adjudication; a well-formed adjudicator response overrides the consensus
// label.
func TestRunWeakConsensusTriggersAdjudication(t *testing.T) {
	noRankingJudgement := "Response A: Strength: fine; Flaw: thin\n" +
		"Response B: Strength: fine; Flaw: thin\n" +
		"Response C: Strength: fine; Flaw: thin\n" +
		"no ranking line here at all just prose"

	client := newFakeClient().
		script("m1", fakeResponse{text: "Answer one."}).
		script("m2", fakeResponse{text: "Answer two."}).
		script("m3", fakeResponse{text: "Answer three."}).
		script("m1", fakeResponse{text: noRankingJudgement}).
		script("m2", fakeResponse{text: noRankingJudgement}).
		script("m3", fakeResponse{text: wellFormedJudgement("ABC", "Response A > Response B > Response C")}).
		script("adjudicator", fakeResponse{text: wellFormedJudgement("ABC", "Response B > Response A > Response C")}).
		script("chairman", fakeResponse{text: "Final answer."})

	cfg := baseConfig("m1", "m2", "m3")
	cfg.AdjudicatorModelID = "adjudicator"
	o := newOrchestrator(cfg, client)
	cid := newConversation(t, o)

	msg, err := o.Run(context.Background(), cid, "how confident should we be?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Meta.Adjudication == nil {
		t.Fatalf("expected adjudication to have run")
	}
	if msg.Meta.Top1Consensus != "B" {
		t.Fatalf("expected adjudicator's top pick B to override consensus, got %q", msg.Meta.Top1Consensus)
	}
}

// A Chairman timeout (modeled as a ModelTimeout error from the fake client)
// leaves stage3 empty but stage1/stage2 intact, and the run still persists.
func TestRunChairmanFailureLeavesStage3Empty(t *testing.T) {
	client := newFakeClient().
		script("m1", fakeResponse{text: "Answer one."}).
		script("m2", fakeResponse{text: "Answer two."}).
		script("m1", fakeResponse{text: wellFormedJudgement("AB", "Response A > Response B")}).
		script("m2", fakeResponse{text: wellFormedJudgement("AB", "Response A > Response B")}).
		script("chairman", fakeResponse{err: cerr.New(cerr.KindModelTimeout, "chairman deadline exceeded")})

	o := newOrchestrator(baseConfig("m1", "m2"), client)
	cid := newConversation(t, o)

	msg, err := o.Run(context.Background(), cid, "summarize the plan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.Stage3.IsEmpty() {
		t.Fatalf("expected empty stage3 on chairman failure")
	}
	if len(msg.Stage1) != 2 || len(msg.Stage2) != 2 {
		t.Fatalf("expected stage1/stage2 to remain intact, got %d/%d", len(msg.Stage1), len(msg.Stage2))
	}

	found := false
	for _, e := range msg.Meta.Errors {
		if strings.Contains(e, string(cerr.KindModelTimeout)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected meta.errors to record the chairman's ModelTimeout, got %v", msg.Meta.Errors)
	}

	loaded, loadErr := o.convStore.Load(context.Background(), cid)
	if loadErr != nil {
		t.Fatalf("unexpected load error: %v", loadErr)
	}
	if loaded == nil {
		t.Fatalf("expected the run to have persisted a conversation")
	}
}

// Evidence that doesn't appear anywhere in the cited Stage-1 text still
// parses (evidence failure degrades the rate, it is not itself fatal).
func TestRunEvidenceFailureDoesNotBlockCompletion(t *testing.T) {
	unsupportedEvidence := "Response A: Strength: cites `nonexistent_token_xyz`; Flaw: also unverifiable\n" +
		"Response B: Strength: fine; Flaw: thin\n" +
		"FINAL_RANKING: Response A > Response B"

	client := newFakeClient().
		script("m1", fakeResponse{text: "Answer one talks about caching and retries."}).
		script("m2", fakeResponse{text: "Answer two talks about caching and retries too."}).
		script("m1", fakeResponse{text: unsupportedEvidence}).
		script("m2", fakeResponse{text: wellFormedJudgement("AB", "Response A > Response B")}).
		script("chairman", fakeResponse{text: "Final answer."})

	o := newOrchestrator(baseConfig("m1", "m2"), client)
	cid := newConversation(t, o)

	msg, err := o.Run(context.Background(), cid, "what's the caching strategy?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Meta.EvidenceOKRate >= 1.0 {
		t.Fatalf("expected a degraded evidence-ok rate, got %v", msg.Meta.EvidenceOKRate)
	}
	if msg.Stage3.IsEmpty() {
		t.Fatalf("expected the run to still complete with a stage3 result")
	}
}
