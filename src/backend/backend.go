// Package backend talks to the text-generation service. Calls are blocking,
// are never retried here and fail with *BackendError.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaURL = "http://127.0.0.1:11434"
	DefaultTimeout   = 60 * time.Second
)

// Generator produces text for a prompt with the named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Provider is a Generator that can also report whether it is reachable.
type Provider interface {
	Generator
	Name() string
	Ping(ctx context.Context) error
}

// BackendError describes a failed or malformed generation call.
type BackendError struct {
	Provider string
	Model    string
	Message  string
	Err      error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " (%s)", e.Model)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsBackendError reports whether err is or wraps a *BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// Config selects and parameterises a provider.
type Config struct {
	Provider     string
	BaseURL      string
	APIKey       string
	DefaultModel string
	Temperature  float64
	Timeout      time.Duration
	// Referer is optional; OpenAI-compatible calls omit HTTP-Referer without it.
	Referer string
}

// NewProvider creates a provider based on configuration.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaURL
		}
		return NewOllamaProvider(cfg), nil
	case ProviderOpenAI:
		if cfg.BaseURL == "" {
			return nil, errors.New("base_url is required for the openai provider")
		}
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
