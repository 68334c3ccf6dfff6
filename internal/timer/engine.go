// Package timer enforces the one-running-timer-per-user rule and computes
// elapsed and aggregated time from stored logs.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
)

var (
	// ErrConflict is returned by StartTimer under RejectIfActive when the
	// user already has a running timer.
	ErrConflict = errors.New("a timer is already running")

	// ErrNotFound is returned when an operation names a missing log.
	ErrNotFound = store.ErrNotFound
)

// StartPolicy decides what StartTimer does when a timer is already running.
type StartPolicy int

const (
	// RejectIfActive fails with ErrConflict and creates nothing.
	RejectIfActive StartPolicy = iota
	// AutoStop closes every running timer of the user, then starts the
	// new one.
	AutoStop
)

func (p StartPolicy) String() string {
	switch p {
	case RejectIfActive:
		return "reject"
	case AutoStop:
		return "auto_stop"
	}
	return fmt.Sprintf("StartPolicy(%d)", int(p))
}

// ParsePolicy maps the config spelling onto a StartPolicy. Empty selects
// RejectIfActive.
func ParsePolicy(s string) (StartPolicy, error) {
	switch s {
	case "", "reject":
		return RejectIfActive, nil
	case "auto_stop":
		return AutoStop, nil
	}
	return 0, fmt.Errorf("unknown start policy %q", s)
}

type Engine struct {
	store  store.Store
	policy StartPolicy
	logger *slog.Logger
}

func NewEngine(s store.Store, policy StartPolicy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: s, policy: policy, logger: logger}
}

func (e *Engine) Policy() StartPolicy {
	return e.policy
}

// StartTimer starts tracking issue for userID and returns the new log ID.
// The running-timer check and the insert happen in one store transaction.
func (e *Engine) StartTimer(ctx context.Context, userID string, issue models.Issue) (string, error) {
	var id string
	var closed []string

	err := e.store.Update(ctx, func(tx store.Tx) error {
		// Firestore may rerun the function.
		id, closed = "", nil

		open, err := tx.OpenLogs(userID)
		if err != nil {
			return err
		}

		if len(open) > 0 {
			if e.policy == RejectIfActive {
				return fmt.Errorf("%w on %s, stop it first", ErrConflict, open[0].IssueIdentifier)
			}
			for _, l := range open {
				if err := tx.Close(l.ID); err != nil {
					return err
				}
				closed = append(closed, l.ID)
			}
		}

		id, err = tx.Create(models.TimeLog{
			UserID:          userID,
			IssueID:         issue.ID,
			IssueTitle:      issue.Title,
			IssueIdentifier: issue.Identifier,
		})
		if errors.Is(err, store.ErrActiveExists) {
			// Another session started a timer between our read and write.
			return ErrConflict
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("start timer: %w", err)
	}

	e.logger.Info("timer started",
		"user", userID,
		"issue", issue.Identifier,
		"log_id", id,
		"closed", closed,
	)
	return id, nil
}

// StopTimer closes the log. Stopping an already closed log is a no-op, so
// its end time is only ever set once.
func (e *Engine) StopTimer(ctx context.Context, timerID string) error {
	var alreadyClosed bool
	err := e.store.Update(ctx, func(tx store.Tx) error {
		l, err := tx.Get(timerID)
		if err != nil {
			return err
		}
		alreadyClosed = !l.Active()
		if alreadyClosed {
			return nil
		}
		return tx.Close(timerID)
	})
	if err != nil {
		return fmt.Errorf("stop timer %s: %w", timerID, err)
	}

	if alreadyClosed {
		e.logger.Debug("timer already stopped", "log_id", timerID)
	} else {
		e.logger.Info("timer stopped", "log_id", timerID)
	}
	return nil
}

// UpdateEstimate overwrites the free-text estimate of a log. The text is
// not validated.
func (e *Engine) UpdateEstimate(ctx context.Context, timerID, estimate string) error {
	err := e.store.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.Get(timerID); err != nil {
			return err
		}
		return tx.SetEstimate(timerID, estimate)
	})
	if err != nil {
		return fmt.Errorf("update estimate of %s: %w", timerID, err)
	}
	e.logger.Info("estimate updated", "log_id", timerID, "estimate", estimate)
	return nil
}

// Get returns a single log.
func (e *Engine) Get(ctx context.Context, timerID string) (*models.TimeLog, error) {
	l, err := e.store.Get(ctx, timerID)
	if err != nil {
		return nil, fmt.Errorf("get time log %s: %w", timerID, err)
	}
	return l, nil
}

// ActiveTimer returns the user's running timer, or nil if none.
func (e *Engine) ActiveTimer(ctx context.Context, userID string) (*models.TimeLog, error) {
	open, err := e.store.OpenLogs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load active timer: %w", err)
	}
	return FindActive(open), nil
}

// Logs returns every log of the user, oldest first.
func (e *Engine) Logs(ctx context.Context, userID string) ([]models.TimeLog, error) {
	logs, err := e.store.ListLogs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load time logs: %w", err)
	}
	return logs, nil
}

// TimeSpentPerIssue sums the closed logs of the user per issue, in hours.
func (e *Engine) TimeSpentPerIssue(ctx context.Context, userID string) (map[string]float64, error) {
	logs, err := e.Logs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ComputeTimeSpent(logs), nil
}

// SaveEstimates merges estimates (hours per issue) into the user's map.
func (e *Engine) SaveEstimates(ctx context.Context, userID string, estimates models.EstimateMap) error {
	if err := e.store.SaveEstimates(ctx, userID, estimates); err != nil {
		return fmt.Errorf("save estimates: %w", err)
	}
	e.logger.Info("estimates saved", "user", userID, "count", len(estimates))
	return nil
}

func (e *Engine) LoadEstimates(ctx context.Context, userID string) (models.EstimateMap, error) {
	estimates, err := e.store.LoadEstimates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load estimates: %w", err)
	}
	return estimates, nil
}

// Watch pushes a fresh Snapshot of the user's timers after every change
// until the returned subscription is cancelled. Store failures are passed
// to fn instead of a snapshot.
func (e *Engine) Watch(ctx context.Context, userID string, fn func(Snapshot, error)) (store.Subscription, error) {
	sub, err := e.store.Subscribe(ctx, userID, func(logs []models.TimeLog, err error) {
		if err != nil {
			fn(Snapshot{}, fmt.Errorf("watch timers: %w", err))
			return
		}
		snap := NewSnapshot(logs)
		if err := CheckSingleActive(logs); err != nil {
			e.logger.Warn("time log invariant violated", "user", userID, "error", err)
		}
		fn(snap, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("watch timers: %w", err)
	}
	return sub, nil
}
