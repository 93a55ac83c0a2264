package server

import (
	"bufio"
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"ai-notetaking-be/internal/bootstrap"
	"ai-notetaking-be/pkg/council/cerr"
	"ai-notetaking-be/pkg/council/events"
)

type conversationHandler struct {
	container *bootstrap.Container
}

func (h *conversationHandler) create(c *fiber.Ctx) error {
	conv, err := h.container.Store.Create(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (h *conversationHandler) list(c *fiber.Ctx) error {
	convs, err := h.container.Store.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(convs)
}

func (h *conversationHandler) get(c *fiber.Ctx) error {
	conv, err := h.container.Store.Load(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if conv == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conversation not found"})
	}
	return c.JSON(conv)
}

func (h *conversationHandler) delete(c *fiber.Ctx) error {
	if err := h.container.Store.Delete(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type postMessageRequest struct {
	Prompt string `json:"prompt"`
}

// postMessage runs one full council deliberation for the conversation
// named by :id. With "Accept: text/event-stream" it streams the §6
// line-delimited wire format; otherwise it blocks and returns the
// non-streaming JSON fallback the spec calls out as equally acceptable.
func (h *conversationHandler) postMessage(c *fiber.Ctx) error {
	var req postMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	cid := c.Params("id")

	if c.Get("Accept") == "text/event-stream" {
		return h.streamMessage(c, cid, req.Prompt)
	}

	msg, err := h.container.Orchestrator.Run(c.Context(), cid, req.Prompt)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(msg)
}

func (h *conversationHandler) streamMessage(c *fiber.Ctx, cid, prompt string) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	runID := events.NewRunID()
	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.container.Bus.Subscribe(subCtx, runID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// A detached-from-fasthttp context, not c.Context(): fasthttp's RequestCtx
	// is only valid for the lifetime of this handler call, but the run
	// continues after SetBodyStreamWriter's callback returns control here.
	// It is still its own cancelable context, not context.Background()
	// directly: if the client disconnects mid-stream (detected below as a
	// write/flush failure), cancelRun propagates an abort signal into any
	// StageRunner tasks still outstanding, per the sink's abort-on-disconnect
	// contract. The orchestrator's own persist step runs against a further
	// context.WithoutCancel, so a canceled run still commits its trace.
	runCtx, cancelRun := context.WithCancel(events.WithRunID(context.Background(), runID))
	go func() {
		_, _ = h.container.Orchestrator.Run(runCtx, cid, prompt)
	}()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancelRun()
		for msg := range sub {
			var env events.Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				msg.Ack()
				continue
			}
			line, err := events.Line(env)
			if err == nil {
				if _, writeErr := w.Write(line); writeErr != nil {
					msg.Ack()
					return
				}
				if flushErr := w.Flush(); flushErr != nil {
					msg.Ack()
					return
				}
			}
			msg.Ack()
			if env.Type == events.TypeComplete || env.Type == events.TypeError {
				return
			}
		}
	})

	return nil
}

// statusFor maps a fatal orchestrator error to the HTTP status §6 requires:
// 413 for an oversized prompt, 500 for anything else (missing config, a
// store failure on the final append).
func statusFor(err error) int {
	switch cerr.KindOf(err) {
	case cerr.KindPromptTooLarge:
		return fiber.StatusRequestEntityTooLarge
	default:
		return fiber.StatusInternalServerError
	}
}
