package autoapprove

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicJudge is the default judge backend, grounded on the
// teacher's aichannel.AnthropicProvider.
type AnthropicJudge struct {
	client anthropic.Client
	model  string
}

const defaultAnthropicJudgeModel = "claude-haiku-3-5-20241022"

// NewAnthropicJudge builds a judge over the Anthropic API. If apiKey is
// empty it falls back to ANTHROPIC_API_KEY, then CLAUDE_KEY.
func NewAnthropicJudge(apiKey, model string) *AnthropicJudge {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("CLAUDE_KEY")
	}
	if model == "" {
		model = defaultAnthropicJudgeModel
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &AnthropicJudge{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (j *AnthropicJudge) Name() string { return "anthropic" }

func (j *AnthropicJudge) Judge(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(j.model),
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: judgeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildJudgePrompt(req))),
		},
	}

	message, err := j.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("autoapprove: anthropic judge: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	verdict, reasoning := parseVerdict(text.String())
	return Response{Verdict: verdict, Reasoning: reasoning, Model: j.model}, nil
}
