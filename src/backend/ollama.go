package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaProvider calls Ollama's native /api/generate endpoint.
type OllamaProvider struct {
	client      *api.Client
	baseErr     error
	temperature float64
}

// NewOllamaProvider creates a provider for an Ollama server.
func NewOllamaProvider(cfg Config) *OllamaProvider {
	p := &OllamaProvider{temperature: cfg.Temperature}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		p.baseErr = err
		return p
	}
	p.client = api.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	return p
}

func (p *OllamaProvider) Name() string { return ProviderOllama }

// Generate sends the raw prompt; the model itself carries the task instructions.
func (p *OllamaProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	if p.baseErr != nil {
		return "", &BackendError{Provider: ProviderOllama, Model: model, Message: "invalid base_url", Err: p.baseErr}
	}

	stream := false
	req := &api.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: map[string]any{"temperature": p.temperature},
	}

	var out strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", &BackendError{Provider: ProviderOllama, Model: model, Message: ollamaMessage(err), Err: err}
	}
	return out.String(), nil
}

// Ping checks that the server answers /api/version.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if p.baseErr != nil {
		return &BackendError{Provider: ProviderOllama, Message: "invalid base_url", Err: p.baseErr}
	}
	if _, err := p.client.Version(ctx); err != nil {
		return &BackendError{Provider: ProviderOllama, Message: "server unreachable", Err: err}
	}
	return nil
}

func ollamaMessage(err error) string {
	var se api.StatusError
	if errors.As(err, &se) {
		return "API returned " + se.Status
	}
	return "request failed"
}
