package narrative

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker"
)

const (
	DefaultModel = "gpt-4o-mini"
	temperature  = 0.25
	maxTokens    = 220
)

// OpenAIGenerator generates narratives with the chat completions API.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewOpenAIGenerator returns ErrMissingCredential when apiKey is empty.
// Extra options are passed to the OpenAI client (base URL, retries).
func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("narrative: breaker %s %s -> %s", name, from, to)
		},
	})

	return &OpenAIGenerator{
		client:  client,
		model:   model,
		breaker: breaker,
	}, nil
}

func (g *OpenAIGenerator) Model() string {
	return g.model
}

func (g *OpenAIGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(g.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(p.System),
				openai.UserMessage(p.User),
			},
			Temperature: openai.Float(temperature),
			MaxTokens:   openai.Int(maxTokens),
		})
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("no choices returned")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
