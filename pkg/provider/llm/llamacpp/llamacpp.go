// Package llamacpp provides an LLM provider backed by a llama.cpp server's
// OpenAI-compatible API.
package llamacpp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/llm"
)

// Provider implements llm.Provider against a llama.cpp server.
type Provider struct {
	client     openai.Client
	httpClient *http.Client
	baseURL    string
	apiPrefix  string
	healthPath string
	model      string
}

// config holds optional configuration for the provider.
type config struct {
	httpClient *http.Client
	apiPrefix  string
	healthPath string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithHTTPClient sets the HTTP client used for all requests. The default has
// a 60 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) {
		cfg.httpClient = c
	}
}

// WithAPIPrefix overrides the OpenAI API prefix, default "/v1".
func WithAPIPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.apiPrefix = prefix
	}
}

// WithHealthPath overrides the liveness endpoint, default "/health".
func WithHealthPath(path string) Option {
	return func(cfg *config) {
		cfg.healthPath = path
	}
}

// New constructs a Provider for the server at baseURL (scheme://host:port,
// no trailing slash) serving the given upstream model identifier.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("llamacpp: baseURL must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llamacpp: model must not be empty")
	}

	cfg := &config{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiPrefix:  "/v1",
		healthPath: "/health",
	}
	for _, o := range opts {
		o(cfg)
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL+cfg.apiPrefix),
		// llama.cpp ignores authentication, but the SDK wants a key.
		option.WithAPIKey("none"),
		option.WithHTTPClient(cfg.httpClient),
	)
	return &Provider{
		client:     client,
		httpClient: cfg.httpClient,
		baseURL:    baseURL,
		apiPrefix:  cfg.apiPrefix,
		healthPath: cfg.healthPath,
		model:      model,
	}, nil
}

// StreamChat implements llm.Provider.
func (p *Provider) StreamChat(ctx context.Context, req *oai.ChatRequest) (<-chan llm.Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("llamacpp: build params: %w", err)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("llamacpp: start stream: %w", err)
	}

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			out := llm.Chunk{Raw: []byte(chunk.RawJSON())}
			if len(chunk.Choices) > 0 {
				out.Text = chunk.Choices[0].Delta.Content
				out.FinishReason = chunk.Choices[0].FinishReason
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case ch <- llm.Chunk{FinishReason: "error", Text: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Forward implements llm.Provider.
func (p *Provider) Forward(ctx context.Context, body []byte) (*llm.ForwardResult, error) {
	url := p.baseURL + p.apiPrefix + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llamacpp: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llamacpp: forward: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llamacpp: read response: %w", err)
	}
	return &llm.ForwardResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// Ping implements llm.Provider.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+p.healthPath, nil)
	if err != nil {
		return fmt.Errorf("llamacpp: build ping: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llamacpp: ping: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llamacpp: ping returned status %d", resp.StatusCode)
	}
	return nil
}

// ProbeChat implements llm.Provider.
func (p *Provider) ProbeChat(ctx context.Context) error {
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(p.model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		MaxCompletionTokens: param.NewOpt(int64(1)),
	}
	if _, err := p.client.Chat.Completions.New(ctx, params); err != nil {
		return fmt.Errorf("llamacpp: probe chat: %w", err)
	}
	return nil
}

// buildParams converts a gateway chat request into OpenAI SDK params. The
// model field is always rewritten to the upstream identifier.
func (p *Provider) buildParams(req *oai.ChatRequest) (openai.ChatCompletionNewParams, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "user":
			messages = append(messages, openai.UserMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unknown message role %q", m.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = param.NewOpt(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = param.NewOpt(int64(*req.MaxTokens))
	}
	return params, nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
