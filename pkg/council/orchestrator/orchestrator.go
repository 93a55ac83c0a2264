// Package orchestrator sequences one user message through Stage 1 → Stage 2
// → optional Adjudication → Stage 3, and owns the resulting decision trace.
//
// Grounded on ai-notetaking-be's internal/service/chatbot_service.go: a
// single interface (IOrchestrator here) backed by a struct that composes
// every domain sub-component (roles, contracts, anonymize, parser,
// consensus, adjudication, stagerunner, events, title, trace, store) behind
// one constructor, the same shape chatbotService composes its
// search/state/response/session collaborators behind NewChatbotService.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/adjudication"
	"ai-notetaking-be/pkg/council/anonymize"
	"ai-notetaking-be/pkg/council/cerr"
	"ai-notetaking-be/pkg/council/consensus"
	"ai-notetaking-be/pkg/council/contracts"
	"ai-notetaking-be/pkg/council/events"
	"ai-notetaking-be/pkg/council/parser"
	"ai-notetaking-be/pkg/council/roles"
	"ai-notetaking-be/pkg/council/stagerunner"
	"ai-notetaking-be/pkg/council/store"
	"ai-notetaking-be/pkg/council/title"
	"ai-notetaking-be/pkg/council/trace"
	"ai-notetaking-be/pkg/llm"
)

// tracer names every span this package starts. Spans only leave the process
// when internal/tracer.InitTracer has installed a real TracerProvider;
// otherwise otel's default no-op provider makes every Start call free.
var tracer = otel.Tracer("ai-notetaking-be/pkg/council/orchestrator")

// IOrchestrator is the single entry point a transport adapter calls: run one
// council deliberation for one conversation turn.
type IOrchestrator interface {
	Run(ctx context.Context, cid, prompt string) (council.AssistantMessage, error)
}

// Logger is the subset of ai-notetaking-be's logger.ILogger the orchestrator
// needs. Accepting the interface shape here instead of importing
// internal/pkg/logger keeps pkg/council free of any dependency on internal/;
// *logger.ZapLogger already satisfies this structurally.
type Logger interface {
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, string, map[string]interface{})  {}
func (noopLogger) Warn(string, string, map[string]interface{})  {}
func (noopLogger) Error(string, string, map[string]interface{}) {}

// orchestrator composes every deliberation sub-component.
type orchestrator struct {
	config council.CouncilConfig

	client    llm.ModelClient
	roleTable *roles.Table
	convStore store.ConversationStore
	bus       *events.Bus
	titleGen  *title.Generator
	log       Logger

	maxConcurrent int
}

var _ IOrchestrator = &orchestrator{}

// Option configures an optional orchestrator dependency (functional-option
// pattern).
type Option func(*orchestrator)

// WithLogger attaches a structured logger. Without it, the orchestrator logs
// nothing — every failure is still recorded into DecisionTrace.Errors
// regardless.
func WithLogger(l Logger) Option {
	return func(o *orchestrator) { o.log = l }
}

// New wires an Orchestrator from its dependencies. titleGen may be nil, in
// which case title generation stays non-LLM (DeriveFromPrompt/Chairman only).
func New(cfg council.CouncilConfig, client llm.ModelClient, roleTable *roles.Table, convStore store.ConversationStore, bus *events.Bus, titleGen *title.Generator, opts ...Option) IOrchestrator {
	o := &orchestrator{
		config:        cfg,
		client:        client,
		roleTable:     roleTable,
		convStore:     convStore,
		bus:           bus,
		titleGen:      titleGen,
		log:           noopLogger{},
		maxConcurrent: len(cfg.Members),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full 7-step sequence for one user message and returns the
// schema-stable assistant message. cid must already exist in the
// conversation store (the transport layer creates it up front via
// ConversationStore.Create); Run only appends to it. ctx governs in-flight
// model calls: if it is canceled mid-run (client disconnect), outstanding
// StageRunner tasks are asked to abort, but the final store append and
// completion still happen against a detached context, so results are never
// lost to a departed client.
func (o *orchestrator) Run(ctx context.Context, cid, prompt string) (council.AssistantMessage, error) {
	ctx, runSpan := tracer.Start(ctx, "council.run", oteltrace.WithAttributes(
		attribute.String("council.conversation_id", cid),
	))
	defer runSpan.End()

	runID, ok := events.RunIDFromContext(ctx)
	if !ok {
		runID = events.NewRunID()
	}
	runSpan.SetAttributes(attribute.String("council.run_id", runID))
	stream := events.NewRunStream(o.bus, runID)

	if fatal := o.validate(prompt); fatal != nil {
		o.log.Error("orchestrator", "run rejected before any stage", map[string]interface{}{"run_id": runID, "error": fatal.Error()})
		runSpan.RecordError(fatal)
		stream.Emit(ctx, events.TypeError, errorPayload(fatal), nil)
		return council.AssistantMessage{}, fatal
	}

	o.log.Info("orchestrator", "stage1 starting", map[string]interface{}{"run_id": runID, "members": len(o.config.Members)})
	stream.Emit(ctx, events.TypeStage1Start, nil, nil)
	stage1Ctx, stage1Span := tracer.Start(ctx, "council.stage1")
	stage1, lm, decision := o.runStage1(stage1Ctx, prompt)
	stage1Span.End()
	stream.Emit(ctx, events.TypeStage1Complete, stage1AnswersPayload(stage1), nil)

	var stage2 []council.Judgement
	var labels []council.Label
	var stage3 council.Stage3Result

	if len(lm.Labels()) == 0 {
		decision = trace.AppendError(decision, "zero non-errored stage1 answers; stage2 and stage3 skipped")
		o.log.Error("orchestrator", "no surviving stage1 answers", map[string]interface{}{"run_id": runID})
	} else {
		o.log.Info("orchestrator", "stage2 starting", map[string]interface{}{"run_id": runID, "labels": len(lm.Labels())})
		stream.Emit(ctx, events.TypeStage2Start, nil, nil)
		stage2Ctx, stage2Span := tracer.Start(ctx, "council.stage2")
		stage2, labels, decision = o.runStage2(stage2Ctx, prompt, stage1, lm, decision)
		stage2Span.End()
		stream.Emit(ctx, events.TypeStage2Complete, stage2, decision)

		adjudicationCtx, adjudicationSpan := tracer.Start(ctx, "council.adjudication")
		decision = o.runAdjudication(adjudicationCtx, stage1, stage2, lm, labels, decision)
		adjudicationSpan.End()

		stream.Emit(ctx, events.TypeStage3Start, nil, nil)
		stage3Ctx, stage3Span := tracer.Start(ctx, "council.stage3")
		stage3, decision = o.runStage3(stage3Ctx, stage1, lm, labels, decision)
		stage3Span.End()
		stream.Emit(ctx, events.TypeStage3Complete, stage3, nil)
	}

	titleCtx, titleSpan := tracer.Start(ctx, "council.title")
	titleText, titleSource := o.deriveTitle(titleCtx, prompt, stage3)
	titleSpan.End()
	stream.Emit(ctx, events.TypeTitleComplete, titlePayload(titleText, titleSource), nil)

	decision.ContractStack = contracts.Summary(o.config.ContractStack)

	msg := trace.BuildAssistantMessage(stage1, stage2, stage3, decision)

	persistCtx := context.WithoutCancel(ctx)
	persistCtx, persistSpan := tracer.Start(persistCtx, "council.persist")
	if err := o.persist(persistCtx, cid, prompt, titleText, titleSource, msg); err != nil {
		persistSpan.RecordError(err)
		persistSpan.End()
		o.log.Error("orchestrator", "final persist failed", map[string]interface{}{"run_id": runID, "conversation_id": cid, "error": err.Error()})
		runSpan.RecordError(err)
		stream.Emit(persistCtx, events.TypeError, errorPayload(err), nil)
		return msg, err
	}
	persistSpan.End()

	o.log.Info("orchestrator", "run complete", map[string]interface{}{"run_id": runID, "conversation_id": cid, "top1": string(decision.Top1Consensus)})
	stream.Emit(persistCtx, events.TypeComplete, msg, nil)
	return msg, nil
}

// validate implements step 1's fatal checks: missing configuration and an
// oversized or empty prompt never dispatch a single stage.
func (o *orchestrator) validate(prompt string) error {
	if len(o.config.Members) == 0 || o.client == nil {
		return cerr.New(cerr.KindConfigMissing, "no council members or model client configured")
	}
	if prompt == "" {
		return cerr.New(cerr.KindPromptTooLarge, "prompt is empty")
	}
	if o.config.MaxPromptBytes > 0 && len(prompt) > o.config.MaxPromptBytes {
		return cerr.New(cerr.KindPromptTooLarge, fmt.Sprintf("prompt exceeds %d bytes", o.config.MaxPromptBytes))
	}
	return nil
}

// memberSystemPrompt prepends the configured contract stack's system
// messages to a role's own system prompt, so every council member and judge
// call is bound by the same factory contract the Chairman receives.
// Falls back to the role prompt alone if the contract stack is invalid,
// matching runStage3's fallback for the Chairman.
func (o *orchestrator) memberSystemPrompt(rolePrompt string) string {
	contractMessages, err := contracts.BuildSystemMessages(o.config.ContractStack)
	if err != nil {
		return rolePrompt
	}
	return joinSystemMessages(append(contractMessages, rolePrompt))
}

// runStage1 is step 2: one task per council member, each with its role
// system prompt, anonymized once every task has settled.
func (o *orchestrator) runStage1(ctx context.Context, prompt string) ([]council.Stage1Answer, *anonymize.LabelMap, council.DecisionTrace) {
	specs := o.roleTable.Assign(o.config.Members)

	tasks := make([]stagerunner.Task, len(o.config.Members))
	for i, member := range o.config.Members {
		systemPrompt := o.memberSystemPrompt(specs[i].SystemPrompt)
		modelID := member.ModelID
		tasks[i] = stagerunner.Task{
			Run: func(ctx context.Context, deadline time.Time) (string, error) {
				return o.client.Complete(ctx, modelID, systemPrompt, prompt, deadline)
			},
		}
	}

	results := stagerunner.RunAll(ctx, tasks, o.config.Stage1Timeout, o.config.Retry, o.maxConcurrent)

	answers := make([]council.Stage1Answer, len(o.config.Members))
	for i, member := range o.config.Members {
		answers[i] = council.Stage1Answer{
			ModelID:  member.ModelID,
			RoleName: specs[i].RoleName,
			Text:     results[i].Text,
			Err:      results[i].Err,
		}
	}

	var decision council.DecisionTrace
	lm, err := anonymize.Build(answers)
	if err != nil {
		decision = trace.AppendError(decision, err.Error())
		lm, _ = anonymize.Build(nil)
	}
	decision.LabelToModel = lm.ToModelMap()
	decision.ModelRoles = roleNamesByModel(o.config.Members, specs)

	return answers, lm, decision
}

// runStage2 is step 3: one task per council member whose Stage-1 call did
// not fail permanently (judges), each
// seeing the full anonymized Stage-1 set, parsed and scored on return.
func (o *orchestrator) runStage2(ctx context.Context, prompt string, stage1 []council.Stage1Answer, lm *anonymize.LabelMap, decision council.DecisionTrace) ([]council.Judgement, []council.Label, council.DecisionTrace) {
	labels := lm.Labels()
	publicAnswers := anonymize.ToPublic(stage1, lm)
	stage1Texts := publicTextsByLabel(publicAnswers)

	judgeModels := judgeCandidates(stage1, o.config.Members)
	if len(judgeModels) == 0 {
		decision = mergeConsensus(decision, consensus.Score(nil, labels, decision.LabelToModel))
		return nil, labels, decision
	}

	judgePrompt := buildJudgePrompt(publicAnswers, labels)

	tasks := make([]stagerunner.Task, len(judgeModels))
	for i, modelID := range judgeModels {
		systemPrompt := o.memberSystemPrompt(roles.JudgeSystemPrompt)
		model := modelID
		tasks[i] = stagerunner.Task{
			Run: func(ctx context.Context, deadline time.Time) (string, error) {
				return o.client.Complete(ctx, model, systemPrompt, judgePrompt, deadline)
			},
		}
	}

	results := stagerunner.RunAll(ctx, tasks, o.config.Stage2Timeout, o.config.Retry, o.maxConcurrent)

	judgements := make([]council.Judgement, len(judgeModels))
	for i, modelID := range judgeModels {
		if results[i].Err != nil {
			judgements[i] = council.Judgement{
				ModelID:       modelID,
				Partial:       true,
				PartialReason: modelErrorReason(results[i]),
			}
			continue
		}
		j := parser.Parse(results[i].Text, labels, stage1Texts)
		j.ModelID = modelID
		if j.Partial {
			o.log.Warn("orchestrator", "judge output marked partial", map[string]interface{}{"model_id": modelID, "reason": j.PartialReason})
		}
		judgements[i] = j
	}

	decision = mergeConsensus(decision, consensus.Score(judgements, labels, decision.LabelToModel))
	return judgements, labels, decision
}

// runAdjudication is step 4: at most one extra StageRunner task, dispatched
// only when ShouldTrigger fires and an adjudicator model is configured.
func (o *orchestrator) runAdjudication(ctx context.Context, stage1 []council.Stage1Answer, stage2 []council.Judgement, lm *anonymize.LabelMap, labels []council.Label, decision council.DecisionTrace) council.DecisionTrace {
	reason, ok := adjudication.ShouldTrigger(decision)
	if !ok {
		return decision
	}
	if o.config.AdjudicatorModelID == "" {
		return trace.AppendError(decision, "adjudication triggered ("+reason+") but no adjudicator model is configured")
	}

	publicAnswers := anonymize.ToPublic(stage1, lm)
	prompt := adjudication.BuildPrompt(publicAnswers, stage2, labels)
	stage1Texts := publicTextsByLabel(publicAnswers)

	task := stagerunner.Task{
		Run: func(ctx context.Context, deadline time.Time) (string, error) {
			return o.client.Complete(ctx, o.config.AdjudicatorModelID, roles.AdjudicatorSystemPrompt, prompt, deadline)
		},
	}

	results := stagerunner.RunAll(ctx, []stagerunner.Task{task}, o.config.Stage2Timeout, o.config.Retry, 1)
	if results[0].Err != nil {
		return trace.AppendError(decision, "adjudication call failed: "+results[0].Err.Error())
	}

	result := parser.Parse(results[0].Text, labels, stage1Texts)
	result.ModelID = o.config.AdjudicatorModelID
	result.Adjudicator = true

	return adjudication.Merge(decision, reason, result)
}

// runStage3 is step 5: a single Chairman task over the full anonymized
// Stage-1 set, the consensus base label, aggregate ranks, and the rubric
// dimensions. Failure (including Chairman timeout) yields an empty
// Stage3Result per spec, never a fatal error — but unlike Stage1Answer and
// Judgement, Stage3Result carries no error field of its own, so the failure
// is recorded into the returned DecisionTrace instead.
func (o *orchestrator) runStage3(ctx context.Context, stage1 []council.Stage1Answer, lm *anonymize.LabelMap, labels []council.Label, decision council.DecisionTrace) (council.Stage3Result, council.DecisionTrace) {
	if o.config.ChairmanModelID == "" {
		return council.Stage3Result{}, decision
	}

	publicAnswers := anonymize.ToPublic(stage1, lm)
	prompt := buildChairmanPrompt(publicAnswers, decision, labels)

	systemMessages, err := contracts.BuildChairmanSystemMessages(o.config.ContractStack)
	if err != nil {
		systemMessages = []string{roles.DefaultRole.SystemPrompt}
	}
	systemPrompt := joinSystemMessages(systemMessages)

	task := stagerunner.Task{
		Run: func(ctx context.Context, deadline time.Time) (string, error) {
			return o.client.Complete(ctx, o.config.ChairmanModelID, systemPrompt, prompt, deadline)
		},
	}

	results := stagerunner.RunAll(ctx, []stagerunner.Task{task}, o.config.Stage3Timeout, o.config.Retry, 1)
	if results[0].Err != nil {
		decision = trace.AppendError(decision, "stage3 chairman failed: "+string(cerr.KindOf(results[0].Err)))
		return council.Stage3Result{}, decision
	}

	baseLabel := decision.Top1Consensus
	if baseLabel == "" && len(labels) > 0 {
		baseLabel = labels[0]
	}

	return council.Stage3Result{
		ModelID:   o.config.ChairmanModelID,
		Text:      results[0].Text,
		BaseLabel: baseLabel,
	}, decision
}

// deriveTitle is step 6: a plain-text derivation from the prompt, refined
// from the Chairman's text once Stage 3 has run, then an optional
// best-effort LLM pass. Every failure mode here is swallowed; the caller
// always gets something to show.
func (o *orchestrator) deriveTitle(ctx context.Context, prompt string, stage3 council.Stage3Result) (string, string) {
	derived := title.DeriveFromPrompt(prompt)
	source := "derived"

	if !stage3.IsEmpty() {
		if fromChairman := title.DeriveFromChairman(stage3.Text); fromChairman != "" {
			derived = fromChairman
			source = "chairman"
		}
	}

	if o.titleGen != nil {
		deadline := time.Now().Add(o.config.TitleTimeout)
		refined := o.titleGen.Refine(ctx, prompt, derived, deadline)
		if refined != derived {
			return refined, "refined"
		}
	}

	return derived, source
}

// persist is step 7's store write: the user turn and the assistant turn are
// appended to an already-existing conversation, in order.
func (o *orchestrator) persist(ctx context.Context, cid, prompt, titleText, titleSource string, msg council.AssistantMessage) error {
	existing, err := o.convStore.Load(ctx, cid)
	if err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "load conversation before append", err)
	}
	if existing == nil {
		return cerr.New(cerr.KindStoreFailure, "conversation not found: "+cid)
	}

	if err := o.convStore.AppendUserMessage(ctx, cid, prompt); err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "append user message", err)
	}
	if err := o.convStore.AppendAssistantMessage(ctx, cid, msg); err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "append assistant message", err)
	}
	if err := o.convStore.SetTitle(ctx, cid, titleText, titleSource); err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "set conversation title", err)
	}
	return nil
}
