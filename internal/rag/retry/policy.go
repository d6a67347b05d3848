// Package retry holds the injectable retry policy applied to embedding, completion and vector store calls.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("retry")

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// CallTimeout bounds each attempt; zero leaves attempts bounded only by the caller's context.
	CallTimeout time.Duration
	// Jitter is the backoff randomization factor in [0, 1].
	Jitter    float64
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    config.RetryMaxAttempts,
		InitialBackoff: config.RetryInitialBackoff,
		MaxBackoff:     config.RetryMaxBackoff,
		Multiplier:     config.RetryMultiplier,
		CallTimeout:    config.ExternalCallTimeout,
		Jitter:         backoff.DefaultRandomizationFactor,
		Retryable:      IsTransient,
	}
}

func FromSettings(s config.RetrySettings) Policy {
	p := DefaultPolicy()
	p.MaxAttempts = s.MaxAttempts
	p.InitialBackoff = s.InitialBackoff
	p.MaxBackoff = s.MaxBackoff
	p.Multiplier = s.Multiplier
	p.CallTimeout = s.CallTimeout
	return p
}

// NoRetry runs the operation once.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.Jitter
	return b
}

// Do runs op until it succeeds, returns a permanent error, or MaxAttempts is reached.
// The error of the last attempt is returned unchanged.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	attempts := max(p.MaxAttempts, 1)
	attempt := 0

	operation := func() (T, error) {
		attempt++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		}
		defer cancel()

		res, err := op(callCtx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		logger.FromContext(ctx).Warn("transient failure, retrying", "call", name, "attempt", attempt, "wait", wait, "error", err)
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	// on the final try a permanent error comes back still wrapped
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return res, err
}

// IsTransient is the default classifier. Unknown errors are treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch ragErrors.KindOf(err) {
	case ragErrors.KindInvalidArgument, ragErrors.KindNotFound, ragErrors.KindIndexCorruption:
		return false
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return retryableHTTP(oaErr.StatusCode)
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return retryableHTTP(gErr.Code)
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return retryableHTTP(gErrPtr.Code)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return true
		case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.PermissionDenied,
			codes.Unauthenticated, codes.FailedPrecondition, codes.OutOfRange, codes.Unimplemented, codes.Canceled:
			return false
		}
	}
	return true
}

func retryableHTTP(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
