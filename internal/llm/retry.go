package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

type failureClass int

const (
	failureTimeout failureClass = iota
	failureRateLimit
	failureServer
	failureClient
)

func (c failureClass) retryable() bool {
	return c != failureClient
}

func (c failureClass) String() string {
	switch c {
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	default:
		return "client"
	}
}

// sleepFunc is swapped out in tests
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryingGenerator retries transient transport failures of the wrapped generator
type RetryingGenerator struct {
	Generator
	attempts int
	logger   *zap.Logger
}

// WithRetry wraps g so that timeouts, 429s and 5xx responses are retried.
// attempts <= 0 means three.
func WithRetry(g Generator, attempts int, logger *zap.Logger) *RetryingGenerator {
	if attempts <= 0 {
		attempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingGenerator{Generator: g, attempts: attempts, logger: logger}
}

// Generate calls the wrapped generator until it succeeds, fails permanently
// or runs out of attempts
func (r *RetryingGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, err := r.Generator.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		class := classifyTransportError(err)
		if !class.retryable() || attempt == r.attempts {
			break
		}

		delay := backoffDelay(attempt)
		r.logger.Warn("generator call failed, retrying",
			zap.String("provider", r.Name()),
			zap.Int("attempt", attempt),
			zap.String("class", class.String()),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleepFunc(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return failureRateLimit
	case strings.Contains(msg, " 5") || strings.Contains(msg, "status code: 5") || strings.Contains(msg, "(5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, " 4") || strings.Contains(msg, "status code: 4") || strings.Contains(msg, "(4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}
