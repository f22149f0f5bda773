package service

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
)

// Turn 发给模型的一轮对话
type Turn struct {
	Role string
	Text string
}

// TextGenerator 外部文本生成服务
type TextGenerator interface {
	Generate(ctx context.Context, turns []Turn) (string, error)
}

var errEmptyCompletion = errors.New("provider returned no text")

// OpenAIGenerator 基于 OpenAI 兼容接口的 TextGenerator
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewOpenAIGenerator(client *openai.Client, model string, maxTokens int64, temperature float64) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleProviderAssistant {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(openai.ChatModel(g.model)),
		MaxTokens:   openai.F(g.maxTokens),
		Temperature: openai.F(g.temperature),
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errEmptyCompletion
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}
