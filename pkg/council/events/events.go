// Package events is the push-only sink a council run emits its progress
// through: stage1_start, stage1_complete, ..., complete, or error.
//
// In-process fan-out is grounded on ai-notetaking-be's
// internal/bootstrap/container.go wiring of watermill's gochannel pub/sub.
// Cross-instance fan-out (a client attached to a different server instance
// than the one running the orchestrator) is grounded on
// internal/websocket/hub.go's subscribeToRedis: every instance publishes
// run events to a shared Redis channel, and every instance's local bus
// rebroadcasts messages that did not originate locally.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Type enumerates the event types a council run can emit, in the legal
// ordering the Orchestrator follows.
type Type string

const (
	TypeStage1Start    Type = "stage1_start"
	TypeStage1Complete Type = "stage1_complete"
	TypeStage2Start    Type = "stage2_start"
	TypeStage2Complete Type = "stage2_complete"
	TypeStage3Start    Type = "stage3_start"
	TypeStage3Complete Type = "stage3_complete"
	TypeTitleComplete  Type = "title_complete"
	TypeComplete       Type = "complete"
	TypeError          Type = "error"
)

// Envelope is the wire shape of one event: a required type, and optional
// data/metadata payloads. Stage *_complete events carry Data; stage2_complete
// additionally carries Metadata (the DecisionTrace so far).
type Envelope struct {
	Type     Type        `json:"type"`
	Data     interface{} `json:"data,omitempty"`
	Metadata interface{} `json:"metadata,omitempty"`
}

const redisChannel = "council_run_events"

type redisEnvelope struct {
	Origin   string  `json:"origin"`
	RunID    string  `json:"run_id"`
	Envelope Envelope `json:"envelope"`
}

// Bus is the process-wide event fan-out: an in-process watermill gochannel
// pub/sub, optionally backed by Redis for cross-instance delivery.
type Bus struct {
	instanceID string
	pubsub     *gochannel.GoChannel
	rdb        *redis.Client
}

// NewBus builds a Bus. rdb may be nil, in which case events only fan out to
// subscribers within this process.
func NewBus(rdb *redis.Client) *Bus {
	logger := watermill.NewStdLogger(false, false)
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, logger)

	b := &Bus{
		instanceID: uuid.NewString(),
		pubsub:     pubsub,
		rdb:        rdb,
	}
	if rdb != nil {
		go b.relayFromRedis()
	}
	return b
}

func topicFor(runID string) string {
	return "council_run." + runID
}

// Publish fans an envelope out to every local subscriber of runID, and (if
// Redis is configured) to every other instance's subscribers too.
func (b *Bus) Publish(ctx context.Context, runID string, env Envelope) error {
	if err := b.publishLocal(runID, env); err != nil {
		return err
	}
	if b.rdb == nil {
		return nil
	}

	payload, err := json.Marshal(redisEnvelope{Origin: b.instanceID, RunID: runID, Envelope: env})
	if err != nil {
		return fmt.Errorf("marshal cross-instance event: %w", err)
	}
	return b.rdb.Publish(ctx, redisChannel, payload).Err()
}

func (b *Bus) publishLocal(runID string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubsub.Publish(topicFor(runID), msg)
}

// Subscribe returns a channel of raw JSON envelope payloads for runID.
// Callers ack each message after use: the gochannel subscriber waits for
// that Ack (or a Nack, which triggers redelivery) before it delivers the
// next message on the channel.
func (b *Bus) Subscribe(ctx context.Context, runID string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topicFor(runID))
}

// relayFromRedis forwards events published by other instances into this
// instance's local bus, so a client connected here still receives them.
// Self-originated messages are skipped: they were already published
// locally by Publish before hitting Redis.
func (b *Bus) relayFromRedis() {
	ctx := context.Background()
	sub := b.rdb.Subscribe(ctx, redisChannel)
	defer sub.Close()

	for msg := range sub.Channel() {
		var wrapped redisEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &wrapped); err != nil {
			continue
		}
		if wrapped.Origin == b.instanceID {
			continue
		}
		_ = b.publishLocal(wrapped.RunID, wrapped.Envelope)
	}
}

// RunStream is a single run's view onto the Bus: the one emit() operation
// the Orchestrator needs, plus the run id every event is tagged with.
type RunStream struct {
	bus   *Bus
	runID string
}

// NewRunStream scopes a Bus to a single run.
func NewRunStream(bus *Bus, runID string) *RunStream {
	return &RunStream{bus: bus, runID: runID}
}

// Emit publishes one event. Publish failures are swallowed by design: a
// dropped event must never fail the underlying council run, which is why
// the full DecisionTrace is always persisted regardless of streaming health.
func (s *RunStream) Emit(ctx context.Context, eventType Type, data, metadata interface{}) {
	_ = s.bus.Publish(ctx, s.runID, Envelope{Type: eventType, Data: data, Metadata: metadata})
}

// Line renders an envelope as a line-delimited SSE record per §6:
// "data: {...}\n\n".
func Line(env Envelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	out := append([]byte("data: "), payload...)
	out = append(out, '\n', '\n')
	return out, nil
}

// DecodeEnvelope parses a message payload back into an Envelope, for
// consumers reading off Subscribe's channel.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// NewRunID returns a fresh run identifier, in the same format the
// conversation store and event topics both key off.
func NewRunID() string {
	return uuid.NewString()
}

type runIDKey struct{}

// WithRunID attaches a pre-generated run id to ctx, letting a caller (an SSE
// handler that must Subscribe before the run starts) choose the topic name
// up front instead of discovering it only after Run returns.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id attached by WithRunID, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(runIDKey{}).(string)
	return runID, ok
}
