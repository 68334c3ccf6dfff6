package timer

import (
	"fmt"
	"time"

	"github.com/emilianohg/cyclelog/internal/models"
)

// Snapshot is the derived view of a user's logs at one point in time.
type Snapshot struct {
	Logs      []models.TimeLog
	Active    *models.TimeLog
	TimeSpent map[string]float64
}

func NewSnapshot(logs []models.TimeLog) Snapshot {
	return Snapshot{
		Logs:      logs,
		Active:    FindActive(logs),
		TimeSpent: ComputeTimeSpent(logs),
	}
}

// ComputeTimeSpent sums end - start in hours per issue over the logs that
// have both times set. Running timers are excluded.
func ComputeTimeSpent(logs []models.TimeLog) map[string]float64 {
	spent := map[string]float64{}
	for _, l := range logs {
		if l.EndTime == nil || l.StartTime.IsZero() {
			continue
		}
		spent[l.IssueID] += l.Duration().Hours()
	}
	return spent
}

// FindActive returns the running log, or nil. If legacy data holds more
// than one, the most recently started wins.
func FindActive(logs []models.TimeLog) *models.TimeLog {
	var active *models.TimeLog
	for i := range logs {
		l := logs[i]
		if !l.Active() {
			continue
		}
		if active == nil || l.StartTime.After(active.StartTime) {
			active = &l
		}
	}
	return active
}

// CheckSingleActive reports an error if any user has more than one running
// log in logs.
func CheckSingleActive(logs []models.TimeLog) error {
	seen := map[string]string{}
	for _, l := range logs {
		if !l.Active() {
			continue
		}
		if other, ok := seen[l.UserID]; ok {
			return fmt.Errorf("user %s has running logs %s and %s", l.UserID, other, l.ID)
		}
		seen[l.UserID] = l.ID
	}
	return nil
}

// Elapsed returns how long the log has been running at now, or its total
// duration once closed. Never negative.
func Elapsed(l models.TimeLog, now time.Time) time.Duration {
	end := now
	if l.EndTime != nil {
		end = *l.EndTime
	}
	if l.StartTime.IsZero() || end.Before(l.StartTime) {
		return 0
	}
	return end.Sub(l.StartTime)
}

// FormatElapsed renders d as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
