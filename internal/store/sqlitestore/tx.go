package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
)

type tx struct {
	ctx   context.Context
	tx    *sql.Tx
	store *Store

	// touched collects the users whose logs changed, notified on commit.
	touched map[string]bool
}

func (t *tx) Get(id string) (*models.TimeLog, error) {
	return getLog(t.ctx, t.tx, id)
}

func (t *tx) OpenLogs(userID string) ([]models.TimeLog, error) {
	return openLogs(t.ctx, t.tx, userID)
}

func (t *tx) Create(log models.TimeLog) (string, error) {
	id := t.store.newID()
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO time_logs (id, user_id, issue_id, issue_title, issue_identifier, start_time, end_time, estimate)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
	`, id, log.UserID, log.IssueID, log.IssueTitle, log.IssueIdentifier, t.store.now(), nullString(log.Estimate))
	if isUniqueViolation(err) {
		return "", store.ErrActiveExists
	}
	if err != nil {
		return "", store.Unavailable("create time log", err)
	}

	t.touched[log.UserID] = true
	return id, nil
}

func (t *tx) Close(id string) error {
	var userID string
	var start time.Time
	var end sql.NullTime
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT user_id, start_time, end_time FROM time_logs WHERE id = ?", id,
	).Scan(&userID, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return store.Unavailable("load time log", err)
	}
	if end.Valid {
		return nil
	}

	now := t.store.now()
	if now.Before(start) {
		now = start
	}
	if _, err := t.tx.ExecContext(t.ctx,
		"UPDATE time_logs SET end_time = ? WHERE id = ? AND end_time IS NULL", now, id,
	); err != nil {
		return store.Unavailable("close time log", err)
	}

	t.touched[userID] = true
	return nil
}

func (t *tx) SetEstimate(id, estimate string) error {
	var userID string
	err := t.tx.QueryRowContext(t.ctx, "SELECT user_id FROM time_logs WHERE id = ?", id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return store.Unavailable("load time log", err)
	}

	if _, err := t.tx.ExecContext(t.ctx,
		"UPDATE time_logs SET estimate = ? WHERE id = ?", estimate, id,
	); err != nil {
		return store.Unavailable("update estimate", err)
	}

	t.touched[userID] = true
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
