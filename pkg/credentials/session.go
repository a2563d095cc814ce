// Package credentials keeps a third-party bearer token alive with a
// background refresh loop. Tokens refresh at the half-life of their validity
// window rather than at expiry, which tolerates clock skew and request
// latency on both sides.
package credentials

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
)

var (
	ErrExpired        = errors.New("credential expired and refresh exhausted")
	ErrNotInitialized = errors.New("credential session never initialized")
)

const refreshAttempts = 5

// Token is a bearer token with its hard expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// AcquireFunc fetches a fresh token from the provider.
type AcquireFunc func(ctx context.Context) (Token, error)

// Session holds one provider token and refreshes it proactively. Only the
// refresh loop mutates the token; readers go through Token().
type Session struct {
	acquire AcquireFunc
	logger  *log.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
	retryOpts []retry.Option

	mu      sync.Mutex
	token   Token
	ok      bool
	timer   *time.Timer
	stopped bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger.
func WithSessionLogger(l *log.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides the time source. Tests use this to simulate expiry.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithTimerFunc overrides timer creation. Tests capture scheduled delays.
func WithTimerFunc(f func(d time.Duration, fn func()) *time.Timer) SessionOption {
	return func(s *Session) { s.afterFunc = f }
}

// WithRetryOptions appends retry options to the fixed attempt bound. Tests
// pass a short fixed delay.
func WithRetryOptions(opts ...retry.Option) SessionOption {
	return func(s *Session) { s.retryOpts = append(s.retryOpts, opts...) }
}

// NewSession creates a session. Call Start to acquire the initial token and
// begin the refresh loop.
func NewSession(acquire AcquireFunc, opts ...SessionOption) *Session {
	s := &Session{
		acquire:   acquire,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "credentials"})
	}
	return s
}

// Start acquires the initial token, retrying up to the attempt bound, and
// schedules the half-life refresh. It fails only if initialization never
// succeeded.
func (s *Session) Start(ctx context.Context) error {
	return s.refresh(ctx)
}

// Token returns the current bearer token. After the refresh loop has
// exhausted its retries the last token keeps serving until it hard-expires,
// at which point Token fails with ErrExpired.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return "", ErrNotInitialized
	}
	if s.now().After(s.token.ExpiresAt) {
		return "", ErrExpired
	}
	return s.token.Value, nil
}

// Cleanup cancels the pending refresh timer. Idempotent and safe to call
// even if no timer is scheduled.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) refresh(ctx context.Context) error {
	opts := append([]retry.Option{
		retry.Attempts(refreshAttempts),
		retry.Context(ctx),
	}, s.retryOpts...)

	tok, err := retry.DoWithData(func() (Token, error) {
		return s.acquire(ctx)
	}, opts...)
	if err != nil {
		// Keep serving the previous token until it hard-expires.
		s.logger.Error("token refresh exhausted retries", "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	s.ok = true

	if s.stopped {
		return nil
	}
	delay := tok.ExpiresAt.Sub(s.now()) / 2
	if delay < time.Second {
		delay = time.Second
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.afterFunc(delay, func() {
		if err := s.refresh(context.Background()); err != nil {
			s.logger.Warn("background token refresh failed", "err", err)
		}
	})
	s.logger.Debug("token refreshed", "expires", tok.ExpiresAt, "next_refresh_in", delay)
	return nil
}
