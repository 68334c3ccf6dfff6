package models

import "time"

type TimeLog struct {
	ID              string
	UserID          string
	IssueID         string
	IssueTitle      string
	IssueIdentifier string
	StartTime       time.Time
	EndTime         *time.Time // nil while the timer is running
	Estimate        string     // free text, e.g. "25m", "1h"
}

// Active reports whether the log is the user's running timer.
func (l TimeLog) Active() bool {
	return l.EndTime == nil
}

// Duration returns end - start for closed logs and zero for active ones.
func (l TimeLog) Duration() time.Duration {
	if l.EndTime == nil || l.StartTime.IsZero() {
		return 0
	}
	return l.EndTime.Sub(l.StartTime)
}

// EstimateMap maps issue IDs to planned effort in hours.
type EstimateMap map[string]float64

type WorkflowState struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Cycle struct {
	ID       string    `json:"id"`
	Number   int       `json:"number"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
}

// Contains reports whether t falls inside [StartsAt, EndsAt).
func (c Cycle) Contains(t time.Time) bool {
	return !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

type Assignee struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Issue struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Identifier string        `json:"identifier"`
	State      WorkflowState `json:"state"`
	Cycle      *Cycle        `json:"cycle,omitempty"`
	Assignee   *Assignee     `json:"assignee,omitempty"`
}

// Done reports whether the issue sits in the "Done" workflow state.
func (i Issue) Done() bool {
	return i.State.Name == "Done"
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Active    bool   `json:"active"`
}
