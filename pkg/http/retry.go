package http

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	applogger "FuturesHist/pkg/logger"
)

// ErrRetriesExhausted wraps the last retryable error once the retry bound is hit.
var ErrRetriesExhausted = errors.New("retries exhausted")

// OutcomeKind classifies a single request result.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Outcome is the result of a GET: a JSON payload or a classified failure.
type Outcome struct {
	Kind       OutcomeKind
	Payload    []byte
	Status     int
	Attempts   int
	RetryAfter time.Duration
	Err        error
}

// OK reports whether the outcome carries a payload.
func (o Outcome) OK() bool { return o.Kind == OutcomeOK }

func retryable(status int, err error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Status: status, Err: err}
}

func fatal(status int, err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Status: status, Err: err}
}

// linearBackOff waits attempt*unit, or longer when the server sent Retry-After.
type linearBackOff struct {
	unit    time.Duration
	attempt int
	hint    time.Duration
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	wait := time.Duration(b.attempt) * b.unit
	if b.hint > wait {
		wait = b.hint
	}
	b.hint = 0
	return wait
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
	b.hint = 0
}

func (c *Client) doWithRetry(ctx context.Context, rawURL string, params url.Values) Outcome {
	linear := &linearBackOff{unit: c.backoffUnit}
	policy := backoff.WithContext(backoff.WithMaxRetries(linear, uint64(c.maxRetries)), ctx)

	var out Outcome
	attempts := 0
	op := func() error {
		attempts++
		out = c.attempt(ctx, rawURL, params)
		out.Attempts = attempts
		switch out.Kind {
		case OutcomeOK:
			return nil
		case OutcomeRetryable:
			linear.hint = out.RetryAfter
			return out.Err
		default:
			return backoff.Permanent(out.Err)
		}
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying",
			applogger.String("url", rawURL),
			applogger.Int("attempt", attempts),
			applogger.Int("status", out.Status),
			applogger.Duration("wait_ms", wait),
			applogger.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err == nil {
		return out
	}

	if out.Kind == OutcomeRetryable {
		out.Kind = OutcomeFatal
		if ctx.Err() != nil {
			out.Err = ctx.Err()
		} else {
			out.Err = fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, out.Err)
		}
	}
	c.logger.Error("request failed",
		applogger.String("url", rawURL),
		applogger.Int("attempts", attempts),
		applogger.Int("status", out.Status),
		applogger.Error(out.Err),
	)
	return out
}
