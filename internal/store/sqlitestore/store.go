// Package sqlitestore is the local Timer Store backend, kept in a sqlite
// file managed by the db package.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/emilianohg/cyclelog/internal/db"
	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
)

// Config holds the optional collaborators of a Store.
type Config struct {
	// Clock stamps start and end times. Defaults to the wall clock.
	Clock clock.Clock

	// Logger receives subscription and watcher errors. Defaults to a
	// discarding logger.
	Logger *slog.Logger

	// WatchPath is the database file to watch for writes made by other
	// processes. Empty disables cross-process notifications.
	WatchPath string

	// NewID generates log IDs. Defaults to random UUIDs.
	NewID func() string
}

type Store struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
	newID  func() string
	hub    *hub
}

var _ store.Store = (*Store)(nil)

// Open opens (and migrates) the sqlite database at path.
func Open(path string, cfg Config) (*Store, error) {
	database, err := db.OpenAndMigrate(path)
	if err != nil {
		return nil, store.Unavailable("open sqlite store", err)
	}
	if cfg.WatchPath == "" {
		cfg.WatchPath = path
	}
	return New(database, cfg), nil
}

// New wraps an already migrated database. The Store owns database and
// closes it on Close.
func New(database *sql.DB, cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	s := &Store{
		db:     database,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		newID:  cfg.NewID,
	}
	s.hub = newHub(s.ListLogs, cfg.WatchPath, cfg.Logger)
	return s
}

func (s *Store) Close() error {
	s.hub.close()
	return s.db.Close()
}

func (s *Store) now() time.Time {
	return fixTimestamp(s.clock.Now())
}

// fixTimestamp normalises t for storage: UTC with microsecond resolution.
func fixTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("begin transaction", err)
	}
	tx := &tx{ctx: ctx, tx: sqlTx, store: s, touched: map[string]bool{}}

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return store.Unavailable("commit transaction", err)
	}

	for userID := range tx.touched {
		s.hub.notify(userID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.TimeLog, error) {
	return getLog(ctx, s.db, id)
}

func (s *Store) ListLogs(ctx context.Context, userID string) ([]models.TimeLog, error) {
	rows, err := s.db.QueryContext(ctx, selectLogs+`
		WHERE user_id = ?
		ORDER BY start_time ASC
	`, userID)
	if err != nil {
		return nil, store.Unavailable("list time logs", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

func (s *Store) OpenLogs(ctx context.Context, userID string) ([]models.TimeLog, error) {
	return openLogs(ctx, s.db, userID)
}

func (s *Store) Subscribe(ctx context.Context, userID string, fn func([]models.TimeLog, error)) (store.Subscription, error) {
	return s.hub.subscribe(ctx, userID, fn)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectLogs = `
	SELECT id, user_id, issue_id, issue_title, issue_identifier, start_time, end_time, estimate
	FROM time_logs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (*models.TimeLog, error) {
	var l models.TimeLog
	var endTime sql.NullTime
	var estimate sql.NullString

	if err := row.Scan(
		&l.ID, &l.UserID, &l.IssueID, &l.IssueTitle, &l.IssueIdentifier,
		&l.StartTime, &endTime, &estimate,
	); err != nil {
		return nil, err
	}

	if endTime.Valid {
		end := endTime.Time
		l.EndTime = &end
	}
	l.Estimate = estimate.String
	return &l, nil
}

func scanLogs(rows *sql.Rows) ([]models.TimeLog, error) {
	var logs []models.TimeLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, store.Unavailable("scan time log", err)
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("scan time logs", err)
	}
	return logs, nil
}

func getLog(ctx context.Context, q queryer, id string) (*models.TimeLog, error) {
	l, err := scanLog(q.QueryRowContext(ctx, selectLogs+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("get time log", err)
	}
	return l, nil
}

func openLogs(ctx context.Context, q queryer, userID string) ([]models.TimeLog, error) {
	rows, err := q.QueryContext(ctx, selectLogs+`
		WHERE user_id = ? AND end_time IS NULL
		ORDER BY start_time ASC
	`, userID)
	if err != nil {
		return nil, store.Unavailable("query open time logs", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
