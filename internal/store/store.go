// Package store defines the document store holding time logs and per-user
// estimates. Backends live in the sqlitestore and firestorestore
// subpackages.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/emilianohg/cyclelog/internal/models"
)

const (
	TimeLogsCollection  = "time_logs"
	EstimatesCollection = "user_estimates"
)

var (
	// ErrNotFound is returned when a time log does not exist.
	ErrNotFound = errors.New("time log not found")

	// ErrUnavailable wraps every I/O failure talking to the backend.
	// Callers surface it; nothing retries.
	ErrUnavailable = errors.New("timer store unavailable")

	// ErrActiveExists is returned by Tx.Create when the user already has
	// an open log and the backend enforces uniqueness itself.
	ErrActiveExists = errors.New("user already has an active time log")
)

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds while
// keeping the underlying cause.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Tx is the view of the store inside one atomic transaction. Backends that
// require it (Firestore) expect every read to happen before the first
// write.
type Tx interface {
	Get(id string) (*models.TimeLog, error)
	OpenLogs(userID string) ([]models.TimeLog, error)
	// Create persists log with a store-assigned start time and an absent
	// end time, returning the new ID.
	Create(log models.TimeLog) (string, error)
	// Close sets the end time of an open log to the store's current time.
	Close(id string) error
	SetEstimate(id, estimate string) error
}

// Subscription is a live feed started by Store.Subscribe.
type Subscription interface {
	// Cancel stops delivery. It is safe to call more than once.
	Cancel()
}

type Store interface {
	// Update runs fn in a single transaction. If fn returns an error no
	// write is committed.
	Update(ctx context.Context, fn func(Tx) error) error

	Get(ctx context.Context, id string) (*models.TimeLog, error)
	ListLogs(ctx context.Context, userID string) ([]models.TimeLog, error)
	OpenLogs(ctx context.Context, userID string) ([]models.TimeLog, error)

	// SaveEstimates merges estimates into the user's map: keys present are
	// overwritten, others are left untouched.
	SaveEstimates(ctx context.Context, userID string, estimates models.EstimateMap) error
	LoadEstimates(ctx context.Context, userID string) (models.EstimateMap, error)

	// Subscribe calls fn with every log of the user, once immediately and
	// again after each change, until the subscription is cancelled or ctx
	// is done. A failed read calls fn with a nil slice and an error
	// wrapping ErrUnavailable. Calls to fn are never concurrent.
	Subscribe(ctx context.Context, userID string, fn func([]models.TimeLog, error)) (Subscription, error)

	Close() error
}
