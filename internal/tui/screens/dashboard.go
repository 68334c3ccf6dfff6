package screens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/cyclelog/internal/linear"
	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/session"
	"github.com/emilianohg/cyclelog/internal/store"
	"github.com/emilianohg/cyclelog/internal/timer"
)

type dashboardMode int

const (
	dashboardModeList dashboardMode = iota
	dashboardModeEstimate
)

type Dashboard struct {
	session *session.Session
	source  IssueSource
	clock   clock.Clock
	logger  *slog.Logger
	width   int
	height  int

	issues    []models.Issue
	cycles    []models.Cycle
	me        *models.User
	onlyMine  bool
	estimates models.EstimateMap
	snapshot  timer.Snapshot

	groups  []linear.Group
	rows    []models.Issue
	cursor  int
	mode    dashboardMode
	input   textinput.Model
	loading bool
	err     error
	message string
}

func NewDashboard(s *session.Session, source IssueSource, clk clock.Clock, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ti := textinput.New()
	ti.Placeholder = "25m, 1h30m..."
	ti.CharLimit = 32
	ti.Width = 20

	return &Dashboard{
		session:  s,
		source:   source,
		clock:    clk,
		logger:   logger,
		input:    ti,
		loading:  true,
		snapshot: s.Current(),
	}
}

func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// Typing reports whether keys go to the estimate input.
func (d *Dashboard) Typing() bool {
	return d.mode == dashboardModeEstimate
}

// SetSource swaps the issue source, e.g. after the token changed.
func (d *Dashboard) SetSource(source IssueSource) {
	d.source = source
}

type dashboardDataMsg struct {
	issues    []models.Issue
	cycles    []models.Cycle
	me        *models.User
	estimates models.EstimateMap
	err       error
}

type timerActionMsg struct {
	message string
	err     error
}

func (d *Dashboard) Init() tea.Cmd {
	d.loading = true
	d.mode = dashboardModeList
	return d.loadData
}

func (d *Dashboard) loadData() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issues, err := d.source.FetchIssues(ctx)
	if err != nil {
		return dashboardDataMsg{err: err}
	}

	// Cycles and users only decorate the list.
	cycles, err := d.source.FetchCycles(ctx)
	if err != nil {
		d.logger.Warn("failed to load cycles", "error", err)
	}
	var me *models.User
	users, err := d.source.FetchUsers(ctx)
	if err != nil {
		d.logger.Warn("failed to load users", "error", err)
	}
	email := d.session.Identity().Email
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			me = &users[i]
			break
		}
	}

	estimates, err := d.session.LoadEstimates(ctx)
	if err != nil {
		return dashboardDataMsg{err: err}
	}

	return dashboardDataMsg{issues: issues, cycles: cycles, me: me, estimates: estimates}
}

func (d *Dashboard) rebuild() {
	issues := d.issues
	if d.onlyMine && d.me != nil {
		issues = linear.FilterByAssignee(issues, d.me.ID)
	}
	d.groups = linear.GroupByCycle(issues)
	d.rows = d.rows[:0]
	for _, g := range d.groups {
		d.rows = append(d.rows, g.Issues...)
	}
	if d.cursor >= len(d.rows) {
		d.cursor = max(0, len(d.rows)-1)
	}
}

func (d *Dashboard) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.loading = false
		d.err = msg.err
		if msg.err == nil {
			d.issues = msg.issues
			d.cycles = msg.cycles
			d.me = msg.me
			if d.me == nil {
				d.onlyMine = false
			}
			d.estimates = msg.estimates
		}
		d.rebuild()
		return nil

	case SnapshotMsg:
		if msg.Err != nil {
			d.message = ""
			d.err = msg.Err
			return nil
		}
		d.snapshot = msg.Snapshot
		if errors.Is(d.err, store.ErrUnavailable) {
			d.err = nil
		}
		return nil

	case timerActionMsg:
		d.err = msg.err
		d.message = msg.message
		return nil

	case RefreshMsg:
		return d.Init()

	case tea.KeyMsg:
		return d.handleKey(msg)
	}

	if d.mode == dashboardModeEstimate {
		var cmd tea.Cmd
		d.input, cmd = d.input.Update(msg)
		return cmd
	}
	return nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) tea.Cmd {
	if d.mode == dashboardModeEstimate {
		return d.handleEstimateKey(msg)
	}

	switch msg.String() {
	case "up", "k":
		if d.cursor > 0 {
			d.cursor--
		}
	case "down", "j":
		if d.cursor < len(d.rows)-1 {
			d.cursor++
		}
	case "enter", "s":
		if len(d.rows) > 0 {
			return d.start(d.rows[d.cursor])
		}
	case "x":
		return d.stop()
	case "e":
		if active := d.snapshot.Active; active != nil {
			d.mode = dashboardModeEstimate
			d.input.SetValue(active.Estimate)
			d.input.Focus()
		} else {
			d.message = ""
			d.err = errors.New("no timer is running")
		}
	case "m":
		if d.me == nil && !d.onlyMine {
			d.err = nil
			d.message = fmt.Sprintf("No Linear user with email %s, showing all issues", d.session.Identity().Email)
			return nil
		}
		d.onlyMine = !d.onlyMine
		d.rebuild()
	case "r":
		return d.Init()
	case "E":
		return Navigate("estimates")
	case "t":
		return Navigate("settings")
	}
	return nil
}

func (d *Dashboard) handleEstimateKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(d.input.Value())
		d.mode = dashboardModeList
		d.input.Blur()
		return d.updateEstimate(text)
	case "esc":
		d.mode = dashboardModeList
		d.input.Blur()
		return nil
	}
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	return cmd
}

func (d *Dashboard) start(issue models.Issue) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := d.session.Start(ctx, issue); err != nil {
			return timerActionMsg{err: err}
		}
		return timerActionMsg{message: fmt.Sprintf("Started %s", issue.Identifier)}
	}
}

func (d *Dashboard) stop() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		stopped, err := d.session.Stop(ctx)
		if err != nil {
			return timerActionMsg{err: err}
		}
		if !stopped {
			return timerActionMsg{message: "No timer running"}
		}
		return timerActionMsg{message: "Timer stopped"}
	}
}

func (d *Dashboard) updateEstimate(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := d.session.UpdateEstimate(ctx, text); err != nil {
			return timerActionMsg{err: err}
		}
		return timerActionMsg{message: fmt.Sprintf("Estimate set to %q", text)}
	}
}

func (d *Dashboard) bucketLabel(g linear.Group) string {
	if g.Number == 0 || len(g.Issues) == 0 {
		return ""
	}
	switch linear.Classify(d.clock.Now(), d.cycles, g.Issues[0]) {
	case linear.Current:
		return " · current"
	case linear.Next:
		return " · next"
	}
	return ""
}

func (d *Dashboard) issueLine(issue models.Issue, selected bool) string {
	cursor := "  "
	style := NormalStyle
	if selected {
		cursor = "> "
		style = SelectedStyle
	}

	icon := "○"
	if issue.Done() {
		icon = DoneStyle.Render("✓")
	}
	if active := d.snapshot.Active; active != nil && active.IssueID == issue.ID {
		icon = SuccessStyle.Render("▶")
	}

	var extra []string
	if h := d.snapshot.TimeSpent[issue.ID]; h > 0 {
		extra = append(extra, fmt.Sprintf("%.1fh spent", h))
	}
	if h := d.estimates[issue.ID]; h > 0 {
		extra = append(extra, fmt.Sprintf("est %gh", h))
	}
	suffix := ""
	if len(extra) > 0 {
		suffix = "  " + DimStyle.Render(strings.Join(extra, " · "))
	}

	return fmt.Sprintf("%s%s %s %s  %s %s%s",
		cursor,
		icon,
		DimStyle.Render(issue.Identifier),
		style.Render(issue.Title),
		stateDot(issue.State),
		DimStyle.Render(issue.State.Name),
		suffix,
	)
}

func (d *Dashboard) timerBar() string {
	active := d.snapshot.Active
	if active == nil {
		return DimStyle.Render("No timer running.")
	}
	elapsed := timer.Elapsed(*active, d.clock.Now())
	content := fmt.Sprintf("%s %s\n%s",
		DimStyle.Render(active.IssueIdentifier),
		NormalStyle.Render(active.IssueTitle),
		TimerStyle.Render(timer.FormatElapsed(elapsed)),
	)
	if active.Estimate != "" {
		content += DimStyle.Render("  estimate " + active.Estimate)
	}
	return BoxStyle.Render(content)
}

func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("CYCLELOG"))
	b.WriteString("\n")
	scope := "All issues"
	if d.onlyMine {
		scope = "My issues"
	}
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%s · %s", d.session.Identity().Email, scope)))
	b.WriteString("\n\n")

	if d.loading {
		b.WriteString("Loading issues...\n")
		return b.String()
	}

	if d.err != nil {
		b.WriteString(ErrorStyle.Render(errorText(d.err)))
		b.WriteString("\n\n")
	} else if d.message != "" {
		b.WriteString(SuccessStyle.Render(d.message))
		b.WriteString("\n\n")
	}

	if d.mode == dashboardModeEstimate {
		b.WriteString("Estimate for the running timer:\n")
		b.WriteString(d.input.View())
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("[enter] Save  [esc] Cancel"))
		return b.String()
	}

	b.WriteString(d.listView())
	b.WriteString("\n")
	b.WriteString(d.timerBar())
	b.WriteString("\n")

	help := "[enter] Start  [x] Stop  [e] Estimate  [m] Mine/All  [E] Estimates  [t] Token  [r] Refresh  [q] Quit"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}

// listView renders the grouped issues, scrolled so the cursor stays
// visible when the terminal is short.
func (d *Dashboard) listView() string {
	if len(d.rows) == 0 {
		if d.err != nil {
			return ""
		}
		return DimStyle.Render("No active issues found.") + "\n"
	}

	var lines []string
	cursorLine := 0
	i := 0
	for gi, g := range d.groups {
		if gi > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, GroupStyle.Render(strings.ToUpper(g.Label)+d.bucketLabel(g)))
		for _, issue := range g.Issues {
			if i == d.cursor {
				cursorLine = len(lines)
			}
			lines = append(lines, d.issueLine(issue, i == d.cursor))
			i++
		}
	}

	// Title, subtitle, timer box and help take roughly 14 lines.
	avail := d.height - 14
	if d.height > 0 && avail > 3 && len(lines) > avail {
		start := min(max(0, cursorLine-avail/2), len(lines)-avail)
		lines = lines[start : start+avail]
	}
	return strings.Join(lines, "\n") + "\n"
}

func errorText(err error) string {
	switch {
	case errors.Is(err, linear.ErrMissingCredential):
		return "No Linear API token. Press [t] to set one."
	case errors.Is(err, linear.ErrFetch):
		return "Failed to load issues. Please check your API Token."
	case errors.Is(err, timer.ErrConflict):
		return "A timer is already running. Stop it first."
	case errors.Is(err, store.ErrUnavailable):
		return "Timer store unavailable, the timer shown may be out of date."
	}
	return fmt.Sprintf("Error: %v", err)
}
