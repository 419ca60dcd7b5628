// Package jobs drives long-running external generation work to a terminal
// state: it submits a job exactly once, polls its status with a bounded
// attempt budget, retries transient failures, and reports progress changes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okubo-r/seika/internal/reliability"
)

// Kind labels which generation pipeline a job belongs to.
type Kind string

const (
	KindLyrics Kind = "lyrics"
	KindMusic  Kind = "music"
)

// State of a job as reported by the upstream API.
type State string

const (
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Handle identifies one submitted job upstream.
type Handle struct {
	ID string
}

// Status is the outcome of a single poll.
type Status struct {
	State    State
	Progress int
	Result   Result
	Reason   string
}

// Result is the terminal payload of a completed job. Text carries plain
// generated text; Raw carries the provider's payload for callers that need
// to dig fields out of it.
type Result struct {
	Text string
	Raw  map[string]any
}

// Spec describes one job run. Submit is called exactly once per run (plus
// transient-failure retries that never double-submit after a handle is
// obtained). Observer, when set, receives each distinct progress value.
type Spec struct {
	Kind     Kind
	Submit   func(ctx context.Context) (Handle, error)
	Poll     func(ctx context.Context, h Handle) (Status, error)
	Observer func(progress int)
}

// Config bounds one job run. Lyrics and music use different budgets; music
// generation takes materially longer.
type Config struct {
	MaxAttempts      int
	PollInterval     time.Duration
	MaxSubmitRetries int
	SubmitRetryDelay time.Duration

	// DelayFunc, when set, picks the inter-poll delay from the last
	// reported progress. It must be deterministic for a given kind.
	DelayFunc func(progress int, standard time.Duration) time.Duration
}

// NearCompletionDelay halves the inter-poll delay once a job reports 80%
// or more, so terminal results are picked up promptly.
func NearCompletionDelay(progress int, standard time.Duration) time.Duration {
	if progress >= 80 {
		return standard / 2
	}
	return standard
}

var (
	// ErrTimedOut means the attempt budget ran out before a terminal state.
	ErrTimedOut = errors.New("job attempt budget exhausted")
	// ErrCanceled means the caller went away mid-run.
	ErrCanceled = errors.New("job canceled")
)

// FailedError is a terminal failure reported by the job itself.
type FailedError struct {
	Kind   Kind
	Reason string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s job failed: %s", e.Kind, e.Reason)
}

// Run submits the job and polls it to a terminal outcome.
func Run(ctx context.Context, spec Spec, cfg Config) (Result, error) {
	if spec.Submit == nil || spec.Poll == nil {
		return Result{}, errors.New("jobs: spec requires Submit and Poll")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.SubmitRetryDelay <= 0 {
		cfg.SubmitRetryDelay = time.Second
	}

	handle, err := submitOnce(ctx, spec, cfg)
	if err != nil {
		return Result{}, err
	}

	lastProgress := -1
	for attempts := 0; attempts < cfg.MaxAttempts; attempts++ {
		if err := ctx.Err(); err != nil {
			return Result{}, ErrCanceled
		}

		status, err := spec.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ErrCanceled
			}
			if !reliability.IsTransient(err) {
				return Result{}, fmt.Errorf("poll %s job %s: %w", spec.Kind, handle.ID, err)
			}
			// Transient read failure consumes the shared attempt budget.
			if err := sleep(ctx, cfg.PollInterval); err != nil {
				return Result{}, err
			}
			continue
		}

		switch status.State {
		case StateCompleted:
			return status.Result, nil
		case StateFailed:
			return Result{}, &FailedError{Kind: spec.Kind, Reason: status.Reason}
		case StateSubmitted, StateRunning:
			if status.State == StateRunning && spec.Observer != nil && status.Progress != lastProgress {
				spec.Observer(status.Progress)
				lastProgress = status.Progress
			}
			delay := cfg.PollInterval
			if cfg.DelayFunc != nil {
				delay = cfg.DelayFunc(status.Progress, cfg.PollInterval)
			}
			if err := sleep(ctx, delay); err != nil {
				return Result{}, err
			}
		default:
			return Result{}, fmt.Errorf("poll %s job %s: unsupported state %q", spec.Kind, handle.ID, status.State)
		}
	}

	return Result{}, fmt.Errorf("%s job %s: %w", spec.Kind, handle.ID, ErrTimedOut)
}

// submitOnce obtains a handle, retrying only transient submission failures.
// A non-transient error (malformed request, 4xx) is immediately fatal.
func submitOnce(ctx context.Context, spec Spec, cfg Config) (Handle, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxSubmitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Handle{}, ErrCanceled
		}
		handle, err := spec.Submit(ctx)
		if err == nil {
			return handle, nil
		}
		if ctx.Err() != nil {
			return Handle{}, ErrCanceled
		}
		if !reliability.IsTransient(err) {
			return Handle{}, fmt.Errorf("submit %s job: %w", spec.Kind, err)
		}
		lastErr = err
		if attempt < cfg.MaxSubmitRetries {
			if err := sleep(ctx, cfg.SubmitRetryDelay); err != nil {
				return Handle{}, err
			}
		}
	}
	return Handle{}, fmt.Errorf("submit %s job: retries exhausted: %w", spec.Kind, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrCanceled
	case <-timer.C:
		return nil
	}
}
