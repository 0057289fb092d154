// Package ai wraps the OpenAI chat-completion API for the two generation
// collaborators: verse reflections and doctrine-biased answers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/LeventeLantos/scripture-messaging/internal/conversation"
)

// ErrGeneration means the AI call failed or returned nothing usable.
// Callers never substitute fabricated content for it.
var ErrGeneration = errors.New("ai: generation failed")

const reflectionSystemPrompt = "You are a helpful assistant that creates brief, meaningful Bible devotionals for SMS messages."

type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a client for apiKey. baseURL overrides the API
// endpoint when non-empty (tests, proxies).
func NewClient(apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("ai: api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}, nil
}

// Reflect formats a verse for SMS with a brief reflection appended.
func (c *Client) Reflect(ctx context.Context, verseText, reference string) (string, error) {
	prompt := fmt.Sprintf(`Format this Bible verse for an SMS devotional message and add a brief, meaningful reflection (2-3 sentences).

Verse Reference: %s
Verse Text: %s

Please provide:
1. The verse formatted nicely for SMS
2. A brief, encouraging reflection that applies the verse to daily life

Keep the total message under 300 characters if possible for SMS compatibility.`, reference, verseText)

	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: reflectionSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, 250)
}

// Answer responds to a question using the prior dialogue turns and the
// configured doctrinal context.
func (c *Client) Answer(ctx context.Context, dialogue []conversation.Turn, question, doctrine string) (string, error) {
	system := fmt.Sprintf(`You are a knowledgeable Bible assistant answering questions from this doctrinal perspective: %s

Guidelines:
- Provide brief, clear answers suitable for SMS (keep under 400 characters when possible)
- Reference specific Bible verses when relevant
- Be warm, encouraging, and pastoral in tone
- If unsure, acknowledge limitations humbly
- Stay true to the doctrinal perspective provided`, doctrine)

	msgs := make([]openai.ChatCompletionMessage, 0, len(dialogue)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, turn := range dialogue {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})

	return c.complete(ctx, msgs, 300)
}

func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessage, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrGeneration)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGeneration)
	}
	return text, nil
}
