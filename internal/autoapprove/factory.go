package autoapprove

import (
	"strings"

	"github.com/trust-delta/tmai/internal/config"
)

// BuildJudge selects a Provider from configuration, mirroring the
// teacher's Channel.createProvider dispatch: an explicit custom
// command wins, then a recognized langchaingo provider name, and
// Anthropic is the default when model is empty or clearly a Claude
// model string.
func BuildJudge(opts config.AutoApproveOptions) (Provider, error) {
	if opts.CustomCommand != "" {
		return NewCommandJudge(opts.CustomCommand)
	}

	model := strings.TrimSpace(opts.Model)
	if kind, ok := langchainProviderFromModel(model); ok {
		return NewLangChainJudge(kind, "", model)
	}

	return NewAnthropicJudge("", model), nil
}

func langchainProviderFromModel(model string) (LangChainProviderKind, bool) {
	lower := strings.ToLower(model)
	switch {
	case lower == "":
		return "", false
	case strings.HasPrefix(lower, "claude"):
		return "", false
	case strings.HasPrefix(lower, "gpt-") || strings.HasPrefix(lower, "o1") || strings.HasPrefix(lower, "o3"):
		return LangChainOpenAI, true
	case strings.HasPrefix(lower, "gemini"):
		return LangChainGoogle, true
	case strings.HasPrefix(lower, "mistral"):
		return LangChainMistral, true
	case strings.HasPrefix(lower, "deepseek"):
		return LangChainDeepSeek, true
	case strings.Contains(lower, "/"):
		// OpenRouter's "<org>/<model>" slash form.
		return LangChainOpenRouter, true
	default:
		return "", false
	}
}
