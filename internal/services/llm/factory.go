package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// ProviderType identifies which LLM backend serves a request.
type ProviderType string

const (
	ProviderClaude  ProviderType = "claude"
	ProviderGemini  ProviderType = "gemini"
	ProviderOffline ProviderType = "offline"
)

// DetectProvider determines the provider type from a model string.
// Model name prefixes are stable across provider releases, so prefix
// matching is sufficient here.
func DetectProvider(model string) ProviderType {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "claude"):
		return ProviderClaude
	case strings.HasPrefix(m, "gemini"):
		return ProviderGemini
	default:
		return ProviderOffline
	}
}

// NewLLMService creates the appropriate LLM service implementation based on
// configuration. The offline provider needs no credentials and is the
// default when no provider is configured, which keeps local development and
// tests free of API keys.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := ProviderType(strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider)))
	if provider == "" {
		if cfg.LLM.Model != "" {
			provider = DetectProvider(cfg.LLM.Model)
		} else {
			provider = ProviderOffline
		}
	}

	logger.Info().
		Str("provider", string(provider)).
		Str("model", cfg.LLM.Model).
		Msg("Initializing LLM service")

	switch provider {
	case ProviderClaude:
		return NewClaudeService(cfg, logger)
	case ProviderGemini:
		return NewGeminiService(cfg, logger)
	case ProviderOffline:
		return NewOfflineService(logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
