package linear

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/emilianohg/cyclelog/internal/models"
)

type Bucket int

const (
	Backlog Bucket = iota
	Current
	Next
)

func (b Bucket) String() string {
	switch b {
	case Current:
		return "Current"
	case Next:
		return "Next"
	}
	return "Backlog"
}

const NoCycle = "No Cycle"

// CurrentCycle returns the cycle whose [StartsAt, EndsAt) contains now.
func CurrentCycle(now time.Time, cycles []models.Cycle) *models.Cycle {
	for i := range cycles {
		if cycles[i].Contains(now) {
			c := cycles[i]
			return &c
		}
	}
	return nil
}

// NextCycle returns the cycle numbered one after the current one. With no
// current cycle it falls back to the earliest starting cycle.
func NextCycle(now time.Time, cycles []models.Cycle) *models.Cycle {
	if cur := CurrentCycle(now, cycles); cur != nil {
		for i := range cycles {
			if cycles[i].Number == cur.Number+1 {
				c := cycles[i]
				return &c
			}
		}
		return nil
	}

	var next *models.Cycle
	for i := range cycles {
		if next == nil || cycles[i].StartsAt.Before(next.StartsAt) {
			c := cycles[i]
			next = &c
		}
	}
	return next
}

// Classify places issue relative to the current and next cycles.
func Classify(now time.Time, cycles []models.Cycle, issue models.Issue) Bucket {
	if issue.Cycle == nil {
		return Backlog
	}
	if cur := CurrentCycle(now, cycles); cur != nil && cur.ID == issue.Cycle.ID {
		return Current
	}
	if next := NextCycle(now, cycles); next != nil && next.ID == issue.Cycle.ID {
		return Next
	}
	return Backlog
}

type Group struct {
	Label  string
	Number int // zero for NoCycle
	Issues []models.Issue
}

// GroupByCycle groups issues under "Cycle N" labels, newest cycle first,
// with issues lacking a cycle in a trailing "No Cycle" group. Issue order
// within a group is preserved.
func GroupByCycle(issues []models.Issue) []Group {
	byNumber := map[int]*Group{}
	var noCycle *Group

	for _, issue := range issues {
		if issue.Cycle == nil {
			if noCycle == nil {
				noCycle = &Group{Label: NoCycle}
			}
			noCycle.Issues = append(noCycle.Issues, issue)
			continue
		}
		n := issue.Cycle.Number
		g, ok := byNumber[n]
		if !ok {
			g = &Group{Label: fmt.Sprintf("Cycle %d", n), Number: n}
			byNumber[n] = g
		}
		g.Issues = append(g.Issues, issue)
	}

	groups := make([]Group, 0, len(byNumber)+1)
	for _, g := range byNumber {
		groups = append(groups, *g)
	}
	slices.SortFunc(groups, func(a, b Group) int {
		return b.Number - a.Number
	})
	if noCycle != nil {
		groups = append(groups, *noCycle)
	}
	return groups
}

// FilterByAssignee keeps the issues assigned to assigneeID. An empty ID
// keeps everything.
func FilterByAssignee(issues []models.Issue, assigneeID string) []models.Issue {
	if assigneeID == "" {
		return issues
	}
	var out []models.Issue
	for _, issue := range issues {
		if issue.Assignee != nil && issue.Assignee.ID == assigneeID {
			out = append(out, issue)
		}
	}
	return out
}

// FindByIdentifier looks an issue up by its human identifier, e.g. "ENG-12".
func FindByIdentifier(issues []models.Issue, identifier string) (models.Issue, bool) {
	for _, issue := range issues {
		if strings.EqualFold(issue.Identifier, identifier) {
			return issue, true
		}
	}
	return models.Issue{}, false
}
