package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"folio/internal/logging"
	"folio/internal/services"
)

const (
	defaultBackoffCap   = 60 * time.Second
	defaultJitter       = time.Second
	cancelledDeleteWait = 30 * time.Second
)

// Backend is the remote recognition service a Client drives. Implementations
// tag retryable failures with services.ErrTransient.
type Backend interface {
	Upload(ctx context.Context, path string) (string, error)
	ReadBack(ctx context.Context, remoteID string) (string, error)
	Delete(ctx context.Context, remoteID string) error
}

// Client wraps a Backend with retry and cleanup semantics.
type Client struct {
	backend    Backend
	logger     *slog.Logger
	backoffCap time.Duration
	jitter     time.Duration
	sleeper    func(time.Duration)
	random     func() float64
}

// Option customizes the client.
type Option func(*Client)

// WithLogger sets the logger used for retry and cleanup warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBackoff overrides the backoff ceiling and the maximum jitter added to each wait.
func WithBackoff(maxDelay, jitter time.Duration) Option {
	return func(c *Client) {
		if maxDelay > 0 {
			c.backoffCap = maxDelay
		}
		if jitter >= 0 {
			c.jitter = jitter
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithRandom overrides the jitter source; fn must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(c *Client) {
		if fn != nil {
			c.random = fn
		}
	}
}

// NewClient constructs a Client around backend.
func NewClient(backend Backend, opts ...Option) *Client {
	client := &Client{
		backend:    backend,
		backoffCap: defaultBackoffCap,
		jitter:     defaultJitter,
		random:     rand.Float64,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "extraction")
	return client
}

// Extract uploads imagePath, reads the recognized text back and removes the
// remote copy. The returned text is normalized.
func (c *Client) Extract(ctx context.Context, imagePath string) (text string, err error) {
	if info, statErr := os.Stat(imagePath); statErr != nil || info.IsDir() {
		if statErr == nil {
			statErr = errors.New("path is a directory")
		}
		return "", services.Wrap(services.ErrFileNotFound, "extraction", "stat image", imagePath, statErr)
	}
	logger := logging.WithContext(ctx, c.logger)

	var remoteID string
	err = c.withRetry(ctx, logger, "upload", func(ctx context.Context) error {
		id, uploadErr := c.backend.Upload(ctx, imagePath)
		if uploadErr == nil {
			remoteID = id
		}
		return uploadErr
	})
	if err != nil {
		return "", err
	}
	defer c.deleteRemote(ctx, logger, remoteID)

	var raw string
	err = c.withRetry(ctx, logger, "read back", func(ctx context.Context) error {
		out, readErr := c.backend.ReadBack(ctx, remoteID)
		if readErr == nil {
			raw = out
		}
		return readErr
	})
	if err != nil {
		return "", err
	}
	return Normalize(raw), nil
}

// deleteRemote removes the remote copy. When the caller has already been
// cancelled the delete still runs, bounded by a short grace period.
func (c *Client) deleteRemote(ctx context.Context, logger *slog.Logger, remoteID string) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), cancelledDeleteWait)
		defer cancel()
	}
	err := c.withRetry(ctx, logger, "delete", func(ctx context.Context) error {
		return c.backend.Delete(ctx, remoteID)
	})
	if err != nil {
		logging.WarnWithContext(logger, "remote document cleanup failed", "remote_delete_failed",
			logging.String("remote_id", remoteID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the leftover document from the backend manually"),
			logging.String(logging.FieldImpact, "a temporary copy of the page remains on the backend"),
		)
	}
}

// withRetry runs op until it succeeds, fails permanently, or ctx ends.
// Attempts are counted from zero; the wait before retry n+1 is backoffDelay(n).
func (c *Client) withRetry(ctx context.Context, logger *slog.Logger, operation string, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !services.IsTransient(err) {
			return err
		}
		delay := c.backoffDelay(attempt)
		logger.Warn("transient backend failure, retrying",
			logging.String("operation", operation),
			logging.Int(logging.FieldAttempt, attempt+1),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "extraction_retry"),
			logging.String(logging.FieldErrorHint, "backend is rate limiting or unavailable; folio keeps retrying"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("extraction %s interrupted: %w", operation, err)
		}
	}
}

// backoffDelay returns min(2^attempt seconds, cap) plus up to one jitter interval.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.backoffCap
	if attempt < 32 {
		if exp := time.Duration(1<<attempt) * time.Second; exp < delay {
			delay = exp
		}
	}
	if c.jitter > 0 {
		delay += time.Duration(c.random() * float64(c.jitter))
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
