// Package openrouter adapts an OpenAI-compatible chat-completions gateway
// (OpenRouter by default) to the council ModelClient contract.
//
// Adapted from ai-notetaking-be's pkg/llm/huggingface.HuggingFaceProvider,
// which already spoke the OpenAI-compatible /chat/completions shape; this
// is the same wire format the reference LLM-council implementation used via
// openai.AsyncOpenAI pointed at OpenRouter's base URL.
package openrouter

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

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Provider talks to any OpenAI-compatible /chat/completions endpoint.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ llm.ModelClient = &Provider{}

// New creates an OpenRouter-backed ModelClient. baseURL defaults to
// OpenRouter's public endpoint when empty.
func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *Provider) Complete(ctx context.Context, modelID, systemPrompt, userPrompt string, deadline time.Time) (string, error) {
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	reqBody := chatRequest{
		Model: modelID,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", cerr.Wrap(cerr.KindModelPermanent, "marshal openrouter request", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return "", cerr.Wrap(cerr.KindModelPermanent, "build openrouter request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return "", cerr.Wrap(cerr.KindModelTimeout, "openrouter call exceeded deadline", err)
		}
		return "", cerr.Wrap(cerr.KindModelTransient, "openrouter request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", cerr.Wrap(cerr.KindModelTransient, "read openrouter response", err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := llm.ClassifyHTTPStatus(resp.StatusCode)
		return "", cerr.New(kind, fmt.Sprintf("openrouter error: status %d, body: %s", resp.StatusCode, string(body)))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", cerr.Wrap(cerr.KindModelPermanent, "unmarshal openrouter response", err)
	}
	if out.Error != nil {
		return "", cerr.New(cerr.KindModelPermanent, "openrouter returned error: "+out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", cerr.New(cerr.KindModelPermanent, "openrouter returned no choices")
	}

	return out.Choices[0].Message.Content, nil
}
