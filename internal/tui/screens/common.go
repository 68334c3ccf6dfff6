package screens

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/session"
	"github.com/emilianohg/cyclelog/internal/timer"
)

const requestTimeout = 30 * time.Second

// IssueSource is the read-only issue tracker the screens display.
type IssueSource interface {
	FetchIssues(ctx context.Context) ([]models.Issue, error)
	FetchCycles(ctx context.Context) ([]models.Cycle, error)
	FetchUsers(ctx context.Context) ([]models.User, error)
}

// NavigateMsg is sent when navigation to another screen is requested
type NavigateMsg struct {
	Screen string
}

func Navigate(screen string) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{Screen: screen}
	}
}

// RefreshMsg is sent when data should be refreshed
type RefreshMsg struct{}

func Refresh() tea.Cmd {
	return func() tea.Msg {
		return RefreshMsg{}
	}
}

// TickMsg redraws the running timer once a second.
type TickMsg time.Time

func Tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// SnapshotMsg carries a new view of the user's timers. Err is set when the
// store failed to refresh it.
type SnapshotMsg struct {
	Snapshot timer.Snapshot
	Err      error
}

// WaitForSnapshot blocks on the session's update feed. It returns nil once
// the feed is closed.
func WaitForSnapshot(updates <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: u.Snapshot, Err: u.Err}
	}
}

// TokenSavedMsg is sent after a new Linear token has been written to the
// config file.
type TokenSavedMsg struct {
	Token string
}

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginBottom(1)

	GroupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245"))

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	NormalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	DoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	TimerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231"))
)

// stateDot renders a bullet in the workflow state's color.
func stateDot(state models.WorkflowState) string {
	if state.Color == "" {
		return "●"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(state.Color)).Render("●")
}
