// Package factory builds a council ModelClient from configuration, the way
// ai-notetaking-be's pkg/llm/factory.NewLLMProvider picked an LLMProvider by
// provider-type string.
package factory

import (
	"fmt"

	"ai-notetaking-be/pkg/llm"
	"ai-notetaking-be/pkg/llm/ollama"
	"ai-notetaking-be/pkg/llm/openrouter"
)

// New builds a ModelClient for the given provider type.
//
//   - "openrouter": OpenAI-compatible gateway, apiKey required, baseURL optional.
//   - "ollama":     local Ollama instance, baseURL optional (defaults to http://localhost:11434).
func New(providerType, apiKey, baseURL string) (llm.ModelClient, error) {
	switch providerType {
	case "openrouter":
		return openrouter.New(apiKey, baseURL), nil
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", providerType)
	}
}
