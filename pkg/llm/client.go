// Package llm defines the ModelClient contract: the single abstraction the
// council orchestrator uses to talk to any upstream model gateway.
//
// Grounded on ai-notetaking-be's pkg/llm.LLMProvider, generalized from a
// chat-history interface to the single-call, deadline-aware shape the
// deliberation pipeline needs: one prompt in, text or a classified error
// out, never blocking past the deadline.
package llm

import (
	"context"
	"time"

	"ai-notetaking-be/pkg/council/cerr"
)

// ModelClient issues one prompt to one named model and returns its text, or
// a classified error. Implementations must honor ctx's deadline and must
// never retry internally — retry is StageRunner's job.
type ModelClient interface {
	Complete(ctx context.Context, modelID, systemPrompt, userPrompt string, deadline time.Time) (string, error)
}

// ClassifyHTTPStatus maps an upstream HTTP status code to a cerr.Kind, per
// spec §4.1: 429/502/503 are Transient, other 4xx are Permanent.
func ClassifyHTTPStatus(status int) cerr.Kind {
	switch {
	case status == 429 || status == 502 || status == 503:
		return cerr.KindModelTransient
	case status >= 500:
		return cerr.KindModelTransient
	case status >= 400:
		return cerr.KindModelPermanent
	default:
		return cerr.KindModelPermanent
	}
}
