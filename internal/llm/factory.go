package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/config"
)

// Options are the per-provider connection settings.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
}

// New builds the provider selected in cfg, wrapped as
// caller -> retry -> logging -> timeout -> provider.
// An empty provider name yields (nil, nil).
func New(ctx context.Context, cfg config.LLM, log *zap.Logger) (Provider, error) {
	opts := Options{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case "":
		return nil, nil
	case "anthropic":
		base, err = NewAnthropic(opts)
	case "openai":
		base, err = NewOpenAI(opts)
	case "openrouter":
		if opts.BaseURL == "" {
			opts.BaseURL = DefaultOpenRouterURL
		}
		base, err = NewOpenAI(opts)
	case "gemini":
		base, err = NewGemini(ctx, opts)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}

	retry := DefaultRetry()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	return WithRetry(WithLogging(WithTimeout(base, cfg.Timeout), log), retry), nil
}
