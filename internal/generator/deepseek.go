package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultDeepSeekBaseURL is the provider's OpenAI-compatible endpoint.
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	// DefaultDeepSeekModel is the chat model used when none is configured.
	DefaultDeepSeekModel = "deepseek-chat"
)

// DeepSeekClient talks to DeepSeek's OpenAI-compatible chat completions API
// through the official openai-go SDK.
type DeepSeekClient struct {
	model string
	opts  []option.RequestOption
}

// NewDeepSeekClient validates configuration and returns a client. baseURL and
// model fall back to the DeepSeek defaults when empty.
func NewDeepSeekClient(apiKey, baseURL, model string) (*DeepSeekClient, error) {
	if apiKey == "" {
		return nil, errors.New("deepseek api key is not configured")
	}
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	if model == "" {
		model = DefaultDeepSeekModel
	}

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(base + "/v1"),
	}
	return &DeepSeekClient{model: model, opts: opts}, nil
}

// Name implements Client.
func (c *DeepSeekClient) Name() string { return "deepseek" }

// Generate implements Client.
func (c *DeepSeekClient) Generate(ctx context.Context, previous, request string) (string, error) {
	client := openai.NewClient(c.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(BuildPrompt(request, previous)),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("deepseek: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("deepseek: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
