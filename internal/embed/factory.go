package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names an embedding backend.
type Provider string

const (
	ProviderStatic Provider = "static"
	ProviderOllama Provider = "ollama"
)

// Options selects and tunes an embedder.
type Options struct {
	Provider   Provider
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	RequestsPerSecond float64

	// Fallback switches to the static embedder when Ollama is unreachable.
	Fallback bool
}

// ParseProvider maps a config string to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProviderStatic:
		return ProviderStatic, nil
	case ProviderOllama:
		return p, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (valid: static, ollama)", s)
	}
}

// ValidProviders lists the provider names accepted by ParseProvider.
func ValidProviders() []string {
	return []string{string(ProviderStatic), string(ProviderOllama)}
}

// New builds the embedder described by opts.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case "", ProviderStatic:
		return NewStaticEmbedderWithDimensions(opts.Dimensions), nil

	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		if opts.Host != "" {
			cfg.Host = opts.Host
		}
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		cfg.Dimensions = opts.Dimensions
		if opts.BatchSize > 0 {
			cfg.BatchSize = opts.BatchSize
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		if opts.RequestsPerSecond != 0 {
			cfg.RequestsPerSecond = opts.RequestsPerSecond
		}

		e, err := NewOllamaEmbedder(ctx, cfg)
		if err == nil {
			return e, nil
		}
		if !opts.Fallback {
			return nil, err
		}
		slog.Warn("ollama unavailable, using static embedder",
			slog.String("host", cfg.Host),
			slog.String("error", err.Error()))
		return NewStaticEmbedder(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}
