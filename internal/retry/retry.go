package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rowanhealth/clinsight/internal/models"
)

// Policy bounds the retry behavior for one unit of work.
type Policy struct {
	// MaxTries is the total number of attempts, including the first.
	MaxTries int
	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt after that.
	BaseDelay time.Duration
	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration
}

// DefaultPolicy returns the production defaults: 3 tries, 2s base backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:  3,
		BaseDelay: 2 * time.Second,
		MaxDelay:  60 * time.Second,
	}
}

// Recorder receives one processing-log entry per attempt. The store
// satisfies this.
type Recorder interface {
	AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error
}

// Executor runs operations under a retry policy, appending a log entry for
// every attempt.
type Executor struct {
	policy Policy
	rec    Recorder
	logger *slog.Logger
}

// NewExecutor creates an Executor. logger may be nil, in which case
// slog.Default() is used.
func NewExecutor(policy Policy, rec Recorder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxTries < 1 {
		policy.MaxTries = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 60 * time.Second
	}
	return &Executor{policy: policy, rec: rec, logger: logger}
}

// Policy returns the executor's configured policy.
func (x *Executor) Policy() Policy { return x.policy }

// Do executes op for the given session and stage under the executor's
// policy. Transient and validation failures are retried with delay
// base × 2^(attempt−1) up to MaxTries total attempts; a permanent
// classification stops immediately regardless of remaining budget. Every
// attempt appends a started entry plus a completed or failed entry carrying
// the attempt count and, on failure, the error message.
func Do[T any](ctx context.Context, x *Executor, sessionID string, stage models.Stage, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = x.policy.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = x.policy.MaxDelay

	attempt := 0
	operation := func() (T, error) {
		attempt++
		x.record(ctx, sessionID, stage, models.AttemptStarted, attempt, nil)

		v, err := op(ctx)
		if err != nil {
			x.record(ctx, sessionID, stage, models.AttemptFailed, attempt, err)
			x.logger.Warn("stage attempt failed",
				"session", sessionID, "stage", stage,
				"attempt", attempt, "class", Classify(err).String(), "error", err)
			if Classify(err) == ClassPermanent {
				return v, backoff.Permanent(err)
			}
			return v, err
		}

		x.record(ctx, sessionID, stage, models.AttemptCompleted, attempt, nil)
		return v, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(x.policy.MaxTries)),
	)
}

func (x *Executor) record(ctx context.Context, sessionID string, stage models.Stage, outcome models.AttemptOutcome, attempt int, attemptErr error) {
	if x.rec == nil {
		return
	}
	entry := &models.ProcessingLogEntry{
		SessionID: sessionID,
		Stage:     stage,
		Outcome:   outcome,
		Attempt:   attempt,
		CreatedAt: time.Now().UTC(),
	}
	if attemptErr != nil {
		entry.Error = attemptErr.Error()
	}
	// Log appends must not fail the attempt itself; a broken audit sink is
	// reported but the work continues.
	if err := x.rec.AppendLog(ctx, entry); err != nil {
		x.logger.Error("appending processing log entry", "session", sessionID, "stage", stage, "error", err)
	}
}
