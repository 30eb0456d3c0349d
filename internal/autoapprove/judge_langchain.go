package autoapprove

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainProviderKind names a non-Anthropic-SDK provider reachable
// through langchaingo, covering the spec's "external model (command
// invocation)" wording for hosted models reached over HTTP rather than
// a subprocess.
type LangChainProviderKind string

const (
	LangChainOpenAI     LangChainProviderKind = "openai"
	LangChainGoogle     LangChainProviderKind = "google"
	LangChainMistral    LangChainProviderKind = "mistral"
	LangChainDeepSeek   LangChainProviderKind = "deepseek"
	LangChainOpenRouter LangChainProviderKind = "openrouter"
)

type langchainProviderInfo struct {
	envKeys            []string
	baseURL            string
	defaultModel       string
	isOpenAICompatible bool
}

var langchainRegistry = map[LangChainProviderKind]langchainProviderInfo{
	LangChainOpenAI: {
		envKeys:            []string{"OPENAI_API_KEY", "OPENAI_KEY"},
		defaultModel:       "gpt-4o-mini",
		isOpenAICompatible: true,
	},
	LangChainGoogle: {
		envKeys:      []string{"GOOGLE_API_KEY", "GOOGLE_KEY"},
		defaultModel: "gemini-1.5-flash",
	},
	LangChainMistral: {
		envKeys:      []string{"MISTRAL_API_KEY", "MISTRAL_KEY"},
		defaultModel: "mistral-small-latest",
	},
	LangChainDeepSeek: {
		envKeys:            []string{"DEEPSEEK_API_KEY", "DEEP_SEEK_KEY"},
		baseURL:            "https://api.deepseek.com/v1",
		defaultModel:       "deepseek-chat",
		isOpenAICompatible: true,
	},
	LangChainOpenRouter: {
		envKeys:            []string{"OPENROUTER_API_KEY", "OPEN_ROUTER_KEY"},
		baseURL:            "https://openrouter.ai/api/v1",
		defaultModel:       "anthropic/claude-3.5-sonnet",
		isOpenAICompatible: true,
	},
}

// LangChainJudge runs judgments through langchaingo against any of the
// providers above.
type LangChainJudge struct {
	llm      llms.Model
	provider LangChainProviderKind
	model    string
}

// NewLangChainJudge builds a judge for the given provider. apiKey
// overrides the provider's environment-variable lookup when non-empty.
func NewLangChainJudge(provider LangChainProviderKind, apiKey, model string) (*LangChainJudge, error) {
	info, ok := langchainRegistry[provider]
	if !ok {
		return nil, fmt.Errorf("autoapprove: unknown langchain judge provider %q", provider)
	}

	if apiKey == "" {
		for _, k := range info.envKeys {
			apiKey = os.Getenv(k)
			if apiKey != "" {
				break
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no key found for %s (tried %v)", ErrNoAPIKey, provider, info.envKeys)
	}

	if model == "" {
		model = info.defaultModel
	}

	var llm llms.Model
	var err error
	if info.isOpenAICompatible {
		opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
		if info.baseURL != "" {
			opts = append(opts, openai.WithBaseURL(info.baseURL))
		}
		llm, err = openai.New(opts...)
	} else {
		switch provider {
		case LangChainGoogle:
			llm, err = googleai.New(context.Background(), googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
		case LangChainMistral:
			llm, err = mistral.New(mistral.WithAPIKey(apiKey), mistral.WithModel(model))
		default:
			llm, err = anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("autoapprove: create %s llm: %w", provider, err)
	}

	return &LangChainJudge{llm: llm, provider: provider, model: model}, nil
}

func (j *LangChainJudge) Name() string { return string(j.provider) }

func (j *LangChainJudge) Judge(ctx context.Context, req Request) (Response, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, judgeSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildJudgePrompt(req)),
	}

	resp, err := j.llm.GenerateContent(ctx, messages)
	if err != nil {
		return Response{}, fmt.Errorf("autoapprove: langchain judge: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("autoapprove: langchain judge: no response choices")
	}

	verdict, reasoning := parseVerdict(resp.Choices[0].Content)
	return Response{Verdict: verdict, Reasoning: reasoning, Model: j.model}, nil
}
