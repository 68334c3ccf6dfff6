package firestorestore

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
)

// tx adapts a Firestore transaction. Firestore rejects reads after the
// first write, so callers must query before mutating.
type tx struct {
	ctx   context.Context
	tx    *firestore.Transaction
	store *Store
}

func (t *tx) Get(id string) (*models.TimeLog, error) {
	snap, err := t.tx.Get(t.store.logs().Doc(id))
	if err != nil {
		return nil, wrap("get time log", err)
	}
	l, err := toLog(snap)
	if err != nil {
		return nil, store.Unavailable("decode time log "+id, err)
	}
	return &l, nil
}

func (t *tx) OpenLogs(userID string) ([]models.TimeLog, error) {
	snaps, err := t.tx.Documents(t.store.openQuery(userID)).GetAll()
	if err != nil {
		return nil, wrap("query open time logs", err)
	}
	return toLogs(snaps)
}

func (t *tx) Create(log models.TimeLog) (string, error) {
	ref := t.store.logs().NewDoc()
	data := map[string]interface{}{
		"userId":          log.UserID,
		"issueId":         log.IssueID,
		"issueTitle":      log.IssueTitle,
		"issueIdentifier": log.IssueIdentifier,
		"startTime":       firestore.ServerTimestamp,
		// Stored as an explicit null so the open-log query matches it.
		fieldEndTime: nil,
	}
	if log.Estimate != "" {
		data[fieldEstimate] = log.Estimate
	}
	if err := t.tx.Create(ref, data); err != nil {
		return "", wrap("create time log", err)
	}
	return ref.ID, nil
}

// Close stamps endTime with the server time. The caller has already read
// the log inside this transaction, so a concurrent close aborts and
// retries it.
func (t *tx) Close(id string) error {
	return wrap("close time log", t.tx.Update(t.store.logs().Doc(id), []firestore.Update{
		{Path: fieldEndTime, Value: firestore.ServerTimestamp},
	}))
}

func (t *tx) SetEstimate(id, estimate string) error {
	return wrap("update estimate", t.tx.Update(t.store.logs().Doc(id), []firestore.Update{
		{Path: fieldEstimate, Value: estimate},
	}))
}
