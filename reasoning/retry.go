package reasoning

import (
	"context"
	"errors"
)

// RetryConfig controls error-only retries for a wrapped provider. Parse
// failures are not retried here; the client handles those with corrective
// turns. This wrapper is for transport-level failures.
type RetryConfig struct {
	MaxAttempts int
	ShouldRetry func(error) bool
}

// WrapProvider wraps a provider with deterministic, error-only retries.
func WrapProvider(provider Provider, cfg RetryConfig) Provider {
	if provider == nil {
		return nil
	}
	return &providerWrapper{
		next: provider,
		cfg:  cfg,
	}
}

type providerWrapper struct {
	next Provider
	cfg  RetryConfig
}

func (w *providerWrapper) Generate(ctx context.Context, request ProviderRequest) (ProviderResponse, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ProviderResponse{}, ctxErr
	}

	attempts := normalizedAttempts(w.cfg.MaxAttempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := w.next.Generate(ctx, request)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, w.cfg, err) {
			break
		}
	}
	return ProviderResponse{}, lastErr
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg RetryConfig, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if cfg.ShouldRetry == nil {
		return true
	}
	return cfg.ShouldRetry(err)
}
