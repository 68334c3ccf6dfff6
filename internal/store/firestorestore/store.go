// Package firestorestore is the Cloud Firestore Timer Store backend, using
// the same collections as the web client: time_logs documents and one
// user_estimates document per user.
package firestorestore

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
)

const (
	fieldUserID   = "userId"
	fieldEndTime  = "endTime"
	fieldEstimate = "estimate"

	// Maximum attempts for a transaction that keeps hitting contention.
	maxTransactionAttempts = 5
)

// logDoc is the stored shape of a time log.
type logDoc struct {
	UserID          string     `firestore:"userId"`
	IssueID         string     `firestore:"issueId"`
	IssueTitle      string     `firestore:"issueTitle"`
	IssueIdentifier string     `firestore:"issueIdentifier"`
	StartTime       time.Time  `firestore:"startTime"`
	EndTime         *time.Time `firestore:"endTime"`
	Estimate        string     `firestore:"estimate,omitempty"`
}

type estimatesDoc struct {
	Estimates map[string]float64 `firestore:"estimates"`
}

type Store struct {
	client *firestore.Client
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New connects to Firestore in project using Application Default
// Credentials. The FIRESTORE_EMULATOR_HOST variable is honored by the
// client library.
func New(ctx context.Context, project string, logger *slog.Logger) (*Store, error) {
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, store.Unavailable("connect to firestore", err)
	}
	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing client. The Store owns client.
func NewWithClient(client *firestore.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{client: client, logger: logger}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) logs() *firestore.CollectionRef {
	return s.client.Collection(store.TimeLogsCollection)
}

func (s *Store) openQuery(userID string) firestore.Query {
	return s.logs().Where(fieldUserID, "==", userID).Where(fieldEndTime, "==", nil)
}

// wrap maps gRPC failures onto the store error kinds.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return store.Unavailable(op, err)
}

func toLog(snap *firestore.DocumentSnapshot) (models.TimeLog, error) {
	var d logDoc
	if err := snap.DataTo(&d); err != nil {
		return models.TimeLog{}, err
	}
	return models.TimeLog{
		ID:              snap.Ref.ID,
		UserID:          d.UserID,
		IssueID:         d.IssueID,
		IssueTitle:      d.IssueTitle,
		IssueIdentifier: d.IssueIdentifier,
		StartTime:       d.StartTime,
		EndTime:         d.EndTime,
		Estimate:        d.Estimate,
	}, nil
}

func toLogs(snaps []*firestore.DocumentSnapshot) ([]models.TimeLog, error) {
	logs := make([]models.TimeLog, 0, len(snaps))
	for _, snap := range snaps {
		l, err := toLog(snap)
		if err != nil {
			return nil, store.Unavailable("decode time log "+snap.Ref.ID, err)
		}
		logs = append(logs, l)
	}
	slices.SortFunc(logs, func(a, b models.TimeLog) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return logs, nil
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	var fnErr error
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		fnErr = fn(&tx{ctx: ctx, tx: t, store: s})
		return fnErr
	}, firestore.MaxAttempts(maxTransactionAttempts))
	if err == nil {
		return nil
	}
	// Errors produced by fn are returned untouched so callers can match
	// them; everything else came from Firestore.
	if fnErr != nil && errors.Is(err, fnErr) {
		return fnErr
	}
	return wrap("run transaction", err)
}

func (s *Store) Get(ctx context.Context, id string) (*models.TimeLog, error) {
	snap, err := s.logs().Doc(id).Get(ctx)
	if err != nil {
		return nil, wrap("get time log", err)
	}
	l, err := toLog(snap)
	if err != nil {
		return nil, store.Unavailable("decode time log "+id, err)
	}
	return &l, nil
}

func (s *Store) ListLogs(ctx context.Context, userID string) ([]models.TimeLog, error) {
	snaps, err := s.logs().Where(fieldUserID, "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("list time logs", err)
	}
	return toLogs(snaps)
}

func (s *Store) OpenLogs(ctx context.Context, userID string) ([]models.TimeLog, error) {
	snaps, err := s.openQuery(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("query open time logs", err)
	}
	return toLogs(snaps)
}

func (s *Store) SaveEstimates(ctx context.Context, userID string, estimates models.EstimateMap) error {
	if len(estimates) == 0 {
		return nil
	}
	// MergeAll merges the nested map key by key.
	doc := estimatesDoc{Estimates: estimates}
	if _, err := s.client.Collection(store.EstimatesCollection).Doc(userID).Set(ctx, doc, firestore.MergeAll); err != nil {
		return wrap("save estimates", err)
	}
	return nil
}

func (s *Store) LoadEstimates(ctx context.Context, userID string) (models.EstimateMap, error) {
	snap, err := s.client.Collection(store.EstimatesCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.EstimateMap{}, nil
	}
	if err != nil {
		return nil, wrap("load estimates", err)
	}

	var d estimatesDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, store.Unavailable("decode estimates", err)
	}
	if d.Estimates == nil {
		return models.EstimateMap{}, nil
	}
	return d.Estimates, nil
}

type subscription struct {
	cancel context.CancelFunc
}

func (s *subscription) Cancel() {
	s.cancel()
}

// Subscribe listens to the user's logs with a snapshot listener.
func (s *Store) Subscribe(ctx context.Context, userID string, fn func([]models.TimeLog, error)) (store.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	iter := s.logs().Where(fieldUserID, "==", userID).Snapshots(ctx)

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
				return
			}
			if err != nil {
				// The listener cannot recover; the subscriber learns it is dead.
				s.logger.Error("time log snapshot listener", "user", userID, "error", err)
				fn(nil, store.Unavailable("listen to time logs", err))
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				s.logger.Error("read time log snapshot", "user", userID, "error", err)
				fn(nil, store.Unavailable("read time log snapshot", err))
				continue
			}
			logs, err := toLogs(docs)
			if err != nil {
				s.logger.Error("decode time log snapshot", "user", userID, "error", err)
				fn(nil, err)
				continue
			}
			fn(logs, nil)
		}
	}()

	return &subscription{cancel: cancel}, nil
}
