package sqlitestore

import (
	"context"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
)

func (s *Store) SaveEstimates(ctx context.Context, userID string, estimates models.EstimateMap) error {
	if len(estimates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_estimates (user_id, issue_id, hours, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, issue_id) DO UPDATE SET
			hours = excluded.hours,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return store.Unavailable("prepare estimate upsert", err)
	}
	defer stmt.Close()

	now := s.now()
	for issueID, hours := range estimates {
		if _, err := stmt.ExecContext(ctx, userID, issueID, hours, now); err != nil {
			return store.Unavailable("save estimate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Unavailable("commit estimates", err)
	}
	return nil
}

func (s *Store) LoadEstimates(ctx context.Context, userID string) (models.EstimateMap, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT issue_id, hours FROM user_estimates WHERE user_id = ?", userID,
	)
	if err != nil {
		return nil, store.Unavailable("load estimates", err)
	}
	defer rows.Close()

	estimates := models.EstimateMap{}
	for rows.Next() {
		var issueID string
		var hours float64
		if err := rows.Scan(&issueID, &hours); err != nil {
			return nil, store.Unavailable("scan estimate", err)
		}
		estimates[issueID] = hours
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("load estimates", err)
	}
	return estimates, nil
}
