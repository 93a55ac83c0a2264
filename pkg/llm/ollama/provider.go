// Package ollama adapts a local Ollama instance to the council ModelClient
// contract. Adapted from ai-notetaking-be's pkg/llm/ollama.OllamaProvider,
// which exposed a chat-history API; the deliberation pipeline only ever
// needs one system/user prompt pair per call, so Complete replaces Chat.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-notetaking-be/pkg/council/cerr"
	"ai-notetaking-be/pkg/llm"
)

// Provider talks to an Ollama /api/chat endpoint.
type Provider struct {
	BaseURL string
	Client  *http.Client
}

var _ llm.ModelClient = &Provider{}

// New creates an Ollama-backed ModelClient.
func New(baseURL string) *Provider {
	return &Provider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

func (p *Provider) Complete(ctx context.Context, modelID, systemPrompt, userPrompt string, deadline time.Time) (string, error) {
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	reqPayload := chatRequest{
		Model: modelID,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  false,
		Options: options{Temperature: 0.2},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", cerr.Wrap(cerr.KindModelPermanent, "marshal ollama request", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.BaseURL+"/api/chat", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", cerr.Wrap(cerr.KindModelPermanent, "build ollama request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return "", cerr.Wrap(cerr.KindModelTimeout, "ollama call exceeded deadline", err)
		}
		return "", cerr.Wrap(cerr.KindModelTransient, "ollama request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", cerr.Wrap(cerr.KindModelTransient, "read ollama response", err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := llm.ClassifyHTTPStatus(resp.StatusCode)
		return "", cerr.New(kind, fmt.Sprintf("ollama error: status %d, body: %s", resp.StatusCode, string(body)))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", cerr.Wrap(cerr.KindModelPermanent, "unmarshal ollama response", err)
	}

	return out.Message.Content, nil
}
