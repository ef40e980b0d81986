package remote

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

// Backoff describes how a sidecar call is repeated after a transient failure.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	Factor   float64
}

// DefaultBackoff makes three attempts, waiting about 500ms and then 1s.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Cap:      5 * time.Second,
		Factor:   2,
	}
}

// delay is the jittered pause after the given failed attempt (zero based).
// Jitter stays within ±25% and the result never exceeds Cap.
func (b Backoff) delay(attempt int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	wait := float64(b.Base) * math.Pow(factor, float64(attempt))
	wait *= 0.75 + rand.Float64()*0.5
	if b.Cap > 0 && wait > float64(b.Cap) {
		return b.Cap
	}
	return time.Duration(wait)
}

// Retry calls fn until it succeeds, fails permanently or runs out of attempts.
// It returns the last error, or ctx.Err() when cancelled while waiting.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	attempts := max(b.Attempts, 1)
	var err error
	for attempt := range attempts {
		if err = fn(); err == nil || !isTransientError(err) || attempt == attempts-1 {
			return err
		}
		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// isTransientError reports network failures and retryable HTTP statuses.
func isTransientError(err error) bool {
	var status *StatusError
	var netErr net.Error
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &status):
		return status.Temporary()
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"timeout", "connection reset", "connection refused"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
