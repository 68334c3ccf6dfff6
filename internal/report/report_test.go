package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilianohg/cyclelog/internal/linear"
	"github.com/emilianohg/cyclelog/internal/models"
)

var now = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func closedLog(issueID, ident string, start time.Time, d time.Duration) models.TimeLog {
	end := start.Add(d)
	return models.TimeLog{IssueID: issueID, IssueIdentifier: ident, IssueTitle: "Title " + ident, StartTime: start, EndTime: &end}
}

func testLogs() []models.TimeLog {
	return []models.TimeLog{
		closedLog("a", "ENG-1", now.Add(-5*time.Hour), 30*time.Minute),
		closedLog("b", "ENG-2", now.Add(-4*time.Hour), 2*time.Hour),
		closedLog("a", "ENG-1", now.Add(-3*time.Hour), 15*time.Minute),
		{IssueID: "c", IssueIdentifier: "ENG-3", IssueTitle: "Running", StartTime: now.Add(-10 * time.Minute)},
	}
}

func TestBuild(t *testing.T) {
	rows := Build(testLogs(), models.EstimateMap{"a": 1, "b": 1.5})
	require.Len(t, rows, 3)

	assert.Equal(t, "ENG-2", rows[0].Identifier)
	assert.Equal(t, 2*time.Hour, rows[0].Spent)
	assert.Equal(t, time.Duration(0), rows[0].Remaining(), "over estimate")

	assert.Equal(t, "ENG-1", rows[1].Identifier)
	assert.Equal(t, 45*time.Minute, rows[1].Spent)
	assert.Equal(t, 2, rows[1].Sessions)
	assert.Equal(t, 15*time.Minute, rows[1].Remaining())
	assert.True(t, rows[1].LastWorked.Equal(now.Add(-3*time.Hour+15*time.Minute)))

	assert.Equal(t, "ENG-3", rows[2].Identifier)
	assert.True(t, rows[2].Running)
	assert.Zero(t, rows[2].Spent)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", FormatDuration(0))
	assert.Equal(t, "45 minutes", FormatDuration(45*time.Minute))
	assert.Equal(t, "1 hour 30 minutes", FormatDuration(90*time.Minute+20*time.Second))
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "-", FormatHours(0))
	assert.Equal(t, "2h", FormatHours(2))
	assert.Equal(t, "1.5h", FormatHours(1.5))
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Build(testLogs(), models.EstimateMap{"a": 1}), now)
	out := buf.String()

	assert.Contains(t, out, "ENG-1")
	assert.Contains(t, out, "ENG-2")
	assert.Contains(t, out, "45 minutes")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "Total: 2 hours 45 minutes")
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, nil, now)
	assert.Equal(t, "No time logged yet.\n", buf.String())
}

func TestRenderEstimates(t *testing.T) {
	var buf bytes.Buffer
	RenderEstimates(&buf, models.EstimateMap{"a": 2, "zzz": 3}, []models.Issue{{ID: "a", Identifier: "ENG-1", Title: "Fix login"}})
	out := buf.String()

	assert.Contains(t, out, "ENG-1")
	assert.Contains(t, out, "Fix login")
	assert.Contains(t, out, "zzz")
	assert.Contains(t, out, "3h")
}

func TestRenderIssues(t *testing.T) {
	c5 := &models.Cycle{ID: "c5", Number: 5}
	issues := []models.Issue{
		{ID: "a", Identifier: "ENG-1", Title: "Fix login", State: models.WorkflowState{Name: "In Progress"}, Cycle: c5},
		{ID: "b", Identifier: "ENG-2", Title: "Docs", State: models.WorkflowState{Name: "Todo"}},
	}
	active := &models.TimeLog{IssueID: "a"}

	var buf bytes.Buffer
	RenderIssues(&buf, linear.GroupByCycle(issues), map[string]float64{"a": 1}, models.EstimateMap{"b": 2}, active)
	out := buf.String()

	assert.Contains(t, out, "Cycle 5 (1)")
	assert.Contains(t, out, "No Cycle (1)")
	assert.Contains(t, out, "▶")
	assert.Contains(t, out, "1 hour")
	assert.Contains(t, out, "2h")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Cycle 5")), bytes.Index(buf.Bytes(), []byte("No Cycle")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
