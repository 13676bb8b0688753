package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/cupid/internal/llm"
	"github.com/soyeahso/cupid/internal/logging"
)

// FailoverClient tries providers in order, moving to the next one only on
// retryable errors (401, 403, 429, 5xx).
type FailoverClient struct {
	clients []llm.Client
	log     *logging.Logger
}

// NewFailoverClient creates a client over the registry's primary provider
// followed by its fallbacks.
func NewFailoverClient(registry *llm.Registry, providers []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		clients: registry.Chain(providers),
		log:     log.Sub("failover"),
	}
}

// Name returns the primary provider name.
func (f *FailoverClient) Name() string {
	if len(f.clients) == 0 {
		return "none"
	}
	return f.clients[0].Name()
}

// Complete tries the primary provider, falling back on retryable errors.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(f.clients) == 0 {
		return nil, fmt.Errorf("no backend providers configured")
	}

	var lastErr error
	for _, client := range f.clients {
		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if ctx.Err() == nil && isRetryable(err) {
			f.log.Warn().
				Str("provider", client.Name()).
				Err(err).
				Msg("retryable error, trying next provider")
			continue
		}

		// Non-retryable error, stop here
		return nil, err
	}

	return nil, lastErr
}

// isRetryable checks if the error suggests trying another provider.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403, 429, 500, 502, 503, 529:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout")
}
