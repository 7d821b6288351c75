package pipeline

import (
	"context"
	"fmt"

	"github.com/ximaera/fb2lingo/internal/gemini"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/logger"
	"github.com/ximaera/fb2lingo/internal/metadata"
	"github.com/ximaera/fb2lingo/internal/openai"
)

// newBackend builds the backend for cfg.Provider. The returned func
// releases the backend's resources.
var newBackend = func(ctx context.Context, cfg Config) (llm.Backend, func() error, error) {
	switch cfg.Provider {
	case metadata.ProviderGemini:
		if cfg.BaseURL != "" {
			logger.Warn("Base URL is ignored for Gemini", "base_url", cfg.BaseURL)
		}
		client, err := gemini.NewClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		client.SetTemperature(float32(cfg.Temperature))
		return client, client.Close, nil
	case metadata.ProviderOpenAI:
		opts := []openai.Option{openai.WithTemperature(cfg.Temperature)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.NewClient(cfg.APIKey, opts...), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
