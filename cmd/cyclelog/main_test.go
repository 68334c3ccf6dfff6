package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilianohg/cyclelog/internal/auth"
	"github.com/emilianohg/cyclelog/internal/config"
	"github.com/emilianohg/cyclelog/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func tempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	t.Setenv(config.TokenEnv, "")
	t.Setenv(config.AllowedDomainEnv, "")
	return home
}

func signIn(t *testing.T, home, email string) {
	t.Helper()
	f := auth.NewSessionFile(filepath.Join(home, "session.toml"))
	require.NoError(t, f.Save(&auth.Identity{UserID: "u1", Email: email, Name: "Ada", SignedIn: time.Now()}))
}

func TestMigrate(t *testing.T) {
	home := tempHome(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "from version 0 to 2")
	assert.FileExists(t, filepath.Join(home, "db", "cyclelog.sqlite"))

	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date (version 2)")
}

func TestSignedOutCommands(t *testing.T) {
	tempHome(t)

	for _, cmd := range []string{"whoami", "status", "stop", "report"} {
		_, err := execute(t, cmd)
		assert.ErrorIs(t, err, errSignedOut, cmd)
	}
}

func TestSignedInCommands(t *testing.T) {
	home := tempHome(t)
	signIn(t, home, "ada@example.com")

	out, err := execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada <ada@example.com>")

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No timer running.")

	out, err = execute(t, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "No time logged yet.")

	out, err = execute(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")
	assert.NoFileExists(t, filepath.Join(home, "session.toml"))
}

func TestTokenSet(t *testing.T) {
	home := tempHome(t)

	out, err := execute(t, "token", "set", "lin_api_abc")
	require.NoError(t, err)
	assert.Contains(t, out, "Token saved")

	cfg, err := config.LoadFile(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, "lin_api_abc", cfg.LinearAPIToken)

	_, err = execute(t, "token", "set", "  ")
	assert.EqualError(t, err, "empty token")
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4", 4, true},
		{"1.5", 1.5, true},
		{"90m", 1.5, true},
		{"1h30m", 1.5, true},
		{"-1", 0, false},
		{"NaN", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, err := parseHours(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestLogsSince(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	logs := []models.TimeLog{
		{ID: "a", StartTime: day.Add(-time.Hour)},
		{ID: "b", StartTime: day},
		{ID: "c", StartTime: day.Add(3 * time.Hour)},
	}
	got := logsSince(logs, day)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestPrintStatus(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := start.Add(10 * time.Minute)

	var buf bytes.Buffer
	printStatus(&buf, nil, now)
	assert.Equal(t, "No timer running.\n", buf.String())

	buf.Reset()
	printStatus(&buf, &models.TimeLog{IssueIdentifier: "ENG-1", IssueTitle: "Fix login", StartTime: start, Estimate: "25m"}, now)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ENG-1  Fix login", lines[0])
	assert.Equal(t, "Elapsed: 00:10:00", lines[1])
	assert.Equal(t, "Estimate: 25m (15 minutes left)", lines[2])

	buf.Reset()
	printStatus(&buf, &models.TimeLog{IssueIdentifier: "ENG-1", StartTime: start, Estimate: "soon"}, now)
	assert.Contains(t, buf.String(), "Estimate: soon\n")
}

func TestIssueArg(t *testing.T) {
	got, err := issueArg(context.Background(), []string{"ENG-9"})
	require.NoError(t, err)
	assert.Equal(t, "ENG-9", got)
}
