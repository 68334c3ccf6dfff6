package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "test.sqlite")

	database, err := Open(path)
	require.NoError(t, err)
	defer database.Close()

	status, err := GetMigrationStatus(database)
	require.NoError(t, err)
	assert.Equal(t, uint(0), status.CurrentVersion)
	assert.Equal(t, uint(2), status.LatestVersion)
	assert.True(t, status.Pending)

	require.NoError(t, RunMigrations(database))
	// Running again is a no-op.
	require.NoError(t, RunMigrations(database))

	status, err = GetMigrationStatus(database)
	require.NoError(t, err)
	assert.Equal(t, uint(2), status.CurrentVersion)
	assert.False(t, status.Pending)
	assert.False(t, status.Dirty)
}

func TestOneActiveTimerIndex(t *testing.T) {
	database, err := OpenAndMigrate(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	defer database.Close()

	insert := `INSERT INTO time_logs (id, user_id, issue_id, start_time, end_time) VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?)`

	_, err = database.Exec(insert, "a", "u1", "i1", nil)
	require.NoError(t, err)
	_, err = database.Exec(insert, "b", "u1", "i2", nil)
	assert.Error(t, err, "second open log for the same user must be rejected")

	_, err = database.Exec(insert, "c", "u2", "i1", nil)
	assert.NoError(t, err)
	_, err = database.Exec(insert, "d", "u1", "i2", "2025-01-01 00:00:00")
	assert.NoError(t, err, "closed logs are unconstrained")
}
