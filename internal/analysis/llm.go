package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
)

// LLM produces one completion for a system/user prompt pair. The analyzer
// only needs this single call; implementations own their transport.
type LLM interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type OpenAI struct {
	client openai.Client
	model  string
	temp   float64
}

// NewOpenAI builds the production LLM. The API key is read from the
// environment by the client itself (OPENAI_API_KEY).
func NewOpenAI(model string, temp float64) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(),
		model:  model,
		temp:   temp,
	}
}

func (o *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if len(systemPrompt) > 0 {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	res, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       o.model,
		Temperature: openai.Float(o.temp),
	})
	if err != nil {
		slog.Error("openai error: chat completions failed", "error", err)
		return "", fmt.Errorf("openai generation failed: %w", err)
	}

	return res.Choices[0].Message.Content, nil
}
