package backend

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, Ollama's /v1, llama.cpp server).
type OpenAIProvider struct {
	client      *openai.Client
	temperature float32
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible gateway.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: headerTransport{base: http.DefaultTransport, referer: cfg.Referer},
	}

	temp := float32(cfg.Temperature)
	if temp == 0 {
		// The request field is omitempty; a literal zero would fall back to the server default.
		temp = math.SmallestNonzeroFloat32
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(oc),
		temperature: temp,
	}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Generate sends the prompt as a single user message.
func (p *OpenAIProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &BackendError{Provider: ProviderOpenAI, Model: model, Message: apiMessage(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &BackendError{Provider: ProviderOpenAI, Model: model, Message: "no choices in API response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping lists models, which every compatible gateway implements.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return &BackendError{Provider: ProviderOpenAI, Message: apiMessage(err), Err: err}
	}
	return nil
}

func apiMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return "API error: " + apiErr.Message
	}
	return "request failed"
}

// headerTransport adds the attribution headers OpenRouter asks clients to send.
type headerTransport struct {
	base    http.RoundTripper
	referer string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.referer != "" {
		r.Header.Set("HTTP-Referer", t.referer)
	}
	r.Header.Set("X-Title", "A9I Quick Lookup")
	return t.base.RoundTrip(r)
}
