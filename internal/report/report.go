// Package report renders time logs, estimates and issues as terminal tables.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/olekukonko/tablewriter"

	"github.com/emilianohg/cyclelog/internal/linear"
	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/timer"
)

// Row is the per-issue total of a user's logs.
type Row struct {
	IssueID    string
	Identifier string
	Title      string
	Spent      time.Duration
	Sessions   int
	Estimate   float64 // hours, zero when unset
	LastWorked time.Time
	Running    bool
}

// Remaining is the estimate minus the time spent, never below zero.
func (r Row) Remaining() time.Duration {
	if r.Estimate == 0 {
		return 0
	}
	left := Hours(r.Estimate) - r.Spent
	if left < 0 {
		return 0
	}
	return left
}

// Build totals logs per issue, most time spent first. Running logs only
// count towards LastWorked and Running; their time is not included.
func Build(logs []models.TimeLog, estimates models.EstimateMap) []Row {
	spent := timer.ComputeTimeSpent(logs)
	rows := map[string]*Row{}
	var order []string

	for _, l := range logs {
		r, ok := rows[l.IssueID]
		if !ok {
			r = &Row{IssueID: l.IssueID, Identifier: l.IssueIdentifier, Title: l.IssueTitle}
			rows[l.IssueID] = r
			order = append(order, l.IssueID)
		}
		r.Sessions++
		last := l.StartTime
		if l.EndTime != nil {
			last = *l.EndTime
		} else {
			r.Running = true
		}
		if last.After(r.LastWorked) {
			r.LastWorked = last
		}
	}

	out := make([]Row, 0, len(order))
	for _, id := range order {
		r := rows[id]
		r.Spent = Hours(spent[id])
		r.Estimate = estimates[id]
		out = append(out, *r)
	}
	slices.SortStableFunc(out, func(a, b Row) int {
		switch {
		case a.Spent > b.Spent:
			return -1
		case a.Spent < b.Spent:
			return 1
		}
		return 0
	})
	return out
}

// Hours converts fractional hours to a Duration.
func Hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// FormatDuration renders d with its two most significant units, e.g.
// "1 hour 30 minutes". Sub-second precision is dropped.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d <= 0 {
		return "-"
	}
	return durafmt.Parse(d).LimitFirstN(2).String()
}

// FormatHours renders an estimate in hours as "2.5h".
func FormatHours(h float64) string {
	if h == 0 {
		return "-"
	}
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// Render writes the per-issue report.
func Render(w io.Writer, rows []Row, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No time logged yet.")
		return
	}

	table := newTable(w, []string{"Issue", "Title", "Spent", "Estimate", "Remaining", "Sessions", "Last worked"})
	var total time.Duration
	for _, r := range rows {
		last := humanize.RelTime(r.LastWorked, now, "ago", "from now")
		if r.Running {
			last = "running"
		}
		remaining := "-"
		if r.Estimate > 0 {
			remaining = FormatDuration(r.Remaining())
		}
		table.Append([]string{
			r.Identifier,
			truncate(r.Title, 48),
			FormatDuration(r.Spent),
			FormatHours(r.Estimate),
			remaining,
			strconv.Itoa(r.Sessions),
			last,
		})
		total += r.Spent
	}
	table.Render()
	fmt.Fprintf(w, "\nTotal: %s\n", FormatDuration(total))
}

// RenderEstimates lists the estimate map, keyed back to identifiers when
// the issue is known.
func RenderEstimates(w io.Writer, estimates models.EstimateMap, issues []models.Issue) {
	if len(estimates) == 0 {
		fmt.Fprintln(w, "No estimates saved.")
		return
	}
	names := map[string]models.Issue{}
	for _, i := range issues {
		names[i.ID] = i
	}

	ids := make([]string, 0, len(estimates))
	for id := range estimates {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	table := newTable(w, []string{"Issue", "Title", "Estimate"})
	for _, id := range ids {
		label, title := id, ""
		if i, ok := names[id]; ok {
			label, title = i.Identifier, i.Title
		}
		table.Append([]string{label, truncate(title, 48), FormatHours(estimates[id])})
	}
	table.Render()
}

// RenderIssues prints issues grouped by cycle with the time spent and
// estimate of each. The running issue is marked with "▶".
func RenderIssues(w io.Writer, groups []linear.Group, spent map[string]float64, estimates models.EstimateMap, active *models.TimeLog) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return
	}
	for gi, g := range groups {
		if gi > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", g.Label, humanize.Comma(int64(len(g.Issues))))
		table := newTable(w, []string{"", "Issue", "Title", "State", "Spent", "Estimate"})
		for _, i := range g.Issues {
			marker := ""
			if active != nil && active.IssueID == i.ID {
				marker = "▶"
			}
			table.Append([]string{
				marker,
				i.Identifier,
				truncate(i.Title, 56),
				i.State.Name,
				FormatDuration(Hours(spent[i.ID])),
				FormatHours(estimates[i.ID]),
			})
		}
		table.Render()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
