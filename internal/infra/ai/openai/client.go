package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

const maxTokens = 2048

// Client adapts the OpenAI chat API to the Capability port. Responses are
// streamed so the orchestrator consumes them as a sequence of fragments.
type Client struct {
	api   *openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{api: openai.NewClient(apiKey), Model: model}
}

func (c *Client) Invoke(ctx context.Context, inv domain.Invocation) (domain.FragmentStream, error) {
	model := c.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	req := openai.ChatCompletionRequest{
		Model:  model,
		Stream: true,
		User:   inv.Session,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: inv.System},
			{Role: openai.ChatMessageRoleUser, Content: inv.Prompt},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, domain.ErrQuotaExceeded
		}
		return nil, fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	return &fragmentStream{stream: stream}, nil
}

type fragmentStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next fragment; io.EOF ends the stream.
func (f *fragmentStream) Recv() (domain.Fragment, error) {
	resp, err := f.stream.Recv()
	if err != nil {
		return domain.Fragment{}, err
	}
	if len(resp.Choices) == 0 {
		return domain.Fragment{}, nil
	}
	return domain.Fragment{Text: resp.Choices[0].Delta.Content}, nil
}

func (f *fragmentStream) Close() error {
	return f.stream.Close()
}
