// Package openai implements llm.Provider on top of the official openai-go SDK.
// It serves OpenAI itself and every OpenAI-compatible endpoint (Groq, Ollama,
// vLLM, Together, ...) through a base URL override.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/efebarandurmaz/chatcli/internal/llm"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrNoChoices is returned when a completion arrives without any choice.
var ErrNoChoices = errors.New("no choices in response")

// Client implements llm.Provider for OpenAI-compatible APIs.
type Client struct {
	name    string
	model   string
	baseURL string
	sdk     sdk.Client
}

// New creates an OpenAI-compatible provider. The SDK's built-in retries are
// disabled: every call is issued exactly once.
func New(cfg llm.ProviderConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if cfg.OrganizationID != "" {
		opts = append(opts, option.WithOrganization(cfg.OrganizationID))
	}

	return &Client{
		name:    name,
		model:   cfg.Model,
		baseURL: baseURL,
		sdk:     sdk.NewClient(opts...),
	}
}

// Register adds the "openai" provider, every OpenAI-compatible preset from
// llm.KnownProviders and the "custom" provider to f.
func Register(f *llm.ProviderFactory) {
	for name, url := range llm.KnownProviders {
		url := url
		f.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			if c.BaseURL == "" {
				c.BaseURL = url
			}
			return New(c), nil
		})
	}
	f.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.BaseURL == "" {
			return nil, errors.New("custom provider requires a base URL")
		}
		return New(c), nil
	})
}

func (c *Client) Name() string { return c.name }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	params, err := c.params(prompt, opts)
	if err != nil {
		return nil, err
	}

	completion, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion: %w", c.name, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", c.name, ErrNoChoices)
	}

	choice := completion.Choices[0]
	return &llm.Response{
		Content:      choice.Message.Content,
		Model:        completion.Model,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
		StopReason:   string(choice.FinishReason),
	}, nil
}

func (c *Client) Stream(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (llm.EventStream, error) {
	params, err := c.params(prompt, opts)
	if err != nil {
		return nil, err
	}

	s := c.sdk.Chat.Completions.NewStreaming(ctx, params)
	// A failed request is reported before the first event.
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%s: chat completion stream: %w", c.name, err)
	}
	return &chunkStream{stream: s}, nil
}

func (c *Client) params(prompt *llm.Prompt, opts *llm.RequestOptions) (sdk.ChatCompletionNewParams, error) {
	model := c.model
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}

	msgs := make([]sdk.ChatCompletionMessageParamUnion, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		p, err := toMessageParam(m)
		if err != nil {
			return sdk.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, p)
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: msgs,
	}
	if opts != nil {
		if opts.MaxTokens != nil {
			params.MaxTokens = sdk.Int(int64(*opts.MaxTokens))
		}
		if opts.Temperature != nil {
			params.Temperature = sdk.Float(*opts.Temperature)
		}
	}
	return params, nil
}

func toMessageParam(m llm.Message) (sdk.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		p := sdk.ChatCompletionSystemMessageParam{
			Content: sdk.ChatCompletionSystemMessageParamContentUnion{OfString: sdk.String(m.Content)},
		}
		if m.Name != "" {
			p.Name = sdk.String(m.Name)
		}
		return sdk.ChatCompletionMessageParamUnion{OfSystem: &p}, nil
	case llm.RoleAssistant:
		p := sdk.ChatCompletionAssistantMessageParam{
			Content: sdk.ChatCompletionAssistantMessageParamContentUnion{OfString: sdk.String(m.Content)},
		}
		if m.Name != "" {
			p.Name = sdk.String(m.Name)
		}
		return sdk.ChatCompletionMessageParamUnion{OfAssistant: &p}, nil
	case llm.RoleUser:
		p := sdk.ChatCompletionUserMessageParam{
			Content: sdk.ChatCompletionUserMessageParamContentUnion{OfString: sdk.String(m.Content)},
		}
		if m.Name != "" {
			p.Name = sdk.String(m.Name)
		}
		return sdk.ChatCompletionMessageParamUnion{OfUser: &p}, nil
	}
	return sdk.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported message role %q", m.Role)
}

// chunkStream adapts the SDK's SSE stream of completion chunks to llm.EventStream.
type chunkStream struct {
	stream *ssestream.Stream[sdk.ChatCompletionChunk]
	cur    llm.StreamEvent
	closed bool
}

func (s *chunkStream) Next() bool {
	if s.closed || !s.stream.Next() {
		return false
	}
	chunk := s.stream.Current()
	ev := llm.StreamEvent{Choices: make([]llm.ChoiceDelta, 0, len(chunk.Choices))}
	for _, ch := range chunk.Choices {
		ev.Choices = append(ev.Choices, llm.ChoiceDelta{
			Index:   int(ch.Index),
			Content: ch.Delta.Content,
		})
	}
	s.cur = ev
	return true
}

func (s *chunkStream) Current() llm.StreamEvent { return s.cur }

func (s *chunkStream) Err() error { return s.stream.Err() }

func (s *chunkStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}
