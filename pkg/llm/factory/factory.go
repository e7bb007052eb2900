package factory

import (
	"fmt"
	"log"

	"paperchat-be/pkg/llm"
	"paperchat-be/pkg/llm/failover"
	"paperchat-be/pkg/llm/huggingface"
	"paperchat-be/pkg/llm/ollama"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

// NewFailoverProvider builds the primary/fallback pair used for answer
// generation: a cloud backend first, a local one when it is unreachable.
func NewFailoverProvider(primaryType, primaryModel, primaryBaseURL, primaryKey,
	fallbackType, fallbackModel, fallbackBaseURL string, logger *log.Logger) (llm.LLMProvider, error) {

	primary, err := NewLLMProvider(primaryType, primaryModel, primaryBaseURL, primaryKey)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	fallback, err := NewLLMProvider(fallbackType, fallbackModel, fallbackBaseURL, "")
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return failover.New(primary, fallback, logger), nil
}
