// Package llm wraps the OpenAI-compatible completion API the flow
// controller delegates natural-language understanding to.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one turn of conversation history as submitted by the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the structured response the model is instructed to return.
// All fields except Resp and UI are opportunistic.
type Reply struct {
	Resp         string   `json:"resp"`
	UI           string   `json:"ui"`
	Destination  string   `json:"destination,omitempty"`
	Source       string   `json:"source,omitempty"`
	Budget       string   `json:"budget,omitempty"`
	GroupSize    string   `json:"group_size,omitempty"`
	DurationDays int      `json:"duration_days,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}

// Client is the model dependency of the flow controller. Tests substitute
// a fake.
type Client interface {
	Plan(ctx context.Context, history []Message) (*Reply, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient talks to any OpenAI-compatible completion endpoint.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}
}

// Plan submits the system prompt plus the full history and parses the
// structured reply. The call is bounded: on timeout the context is
// abandoned and the error surfaces as an upstream failure.
func (c *OpenAIClient) Plan(ctx context.Context, history []Message) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(),
	})

	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if strings.EqualFold(msg.Role, "assistant") {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	return ParseReply(resp.Choices[0].Message.Content)
}
