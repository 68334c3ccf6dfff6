package tui

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emilianohg/cyclelog/internal/session"
	"github.com/emilianohg/cyclelog/internal/tui/screens"
)

type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenEstimates
	ScreenSettings
)

// Options wires the dashboard to a signed-in session.
type Options struct {
	Session *session.Session
	Source  screens.IssueSource

	// NewSource rebuilds the issue source after the token is changed.
	NewSource func(token string) screens.IssueSource
	// Token returns the token currently configured.
	Token func() string
	// SaveToken persists a new token.
	SaveToken func(token string) error

	Clock  clock.Clock
	Logger *slog.Logger
}

type App struct {
	opts          Options
	currentScreen Screen
	width         int
	height        int

	// Screen models
	dashboard *screens.Dashboard
	estimates *screens.Estimates
	settings  *screens.Settings
}

func NewApp(opts Options) *App {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &App{
		opts:          opts,
		currentScreen: ScreenDashboard,
		dashboard:     screens.NewDashboard(opts.Session, opts.Source, opts.Clock, opts.Logger),
		estimates:     screens.NewEstimates(opts.Session, opts.Source),
		settings:      screens.NewSettings(opts.Token, opts.SaveToken),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.Init(),
		screens.Tick(),
		screens.WaitForSnapshot(a.opts.Session.Updates()),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.currentScreen == ScreenDashboard && !a.dashboard.Typing() {
				return a, tea.Quit
			}
			// Let individual screens handle 'q' for going back
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dashboard.SetSize(msg.Width, msg.Height)
		a.estimates.SetSize(msg.Width, msg.Height)
		a.settings.SetSize(msg.Width, msg.Height)

	case screens.TickMsg:
		// Redraw only; elapsed time is derived from the clock in View.
		return a, screens.Tick()

	case screens.SnapshotMsg:
		a.dashboard.Update(msg)
		return a, screens.WaitForSnapshot(a.opts.Session.Updates())

	case screens.TokenSavedMsg:
		if a.opts.NewSource != nil {
			source := a.opts.NewSource(msg.Token)
			a.dashboard.SetSource(source)
			a.estimates.SetSource(source)
		}
		a.opts.Logger.Info("linear token updated")
		a.currentScreen = ScreenDashboard
		return a, a.dashboard.Init()

	case screens.NavigateMsg:
		return a.handleNavigation(msg)
	}

	// Update current screen
	var cmd tea.Cmd
	switch a.currentScreen {
	case ScreenDashboard:
		cmd = a.dashboard.Update(msg)
	case ScreenEstimates:
		cmd = a.estimates.Update(msg)
	case ScreenSettings:
		cmd = a.settings.Update(msg)
	}

	return a, cmd
}

func (a *App) handleNavigation(msg screens.NavigateMsg) (tea.Model, tea.Cmd) {
	switch msg.Screen {
	case "dashboard":
		a.currentScreen = ScreenDashboard
		return a, a.dashboard.Init()
	case "estimates":
		a.currentScreen = ScreenEstimates
		return a, a.estimates.Init()
	case "settings":
		a.currentScreen = ScreenSettings
		return a, a.settings.Init()
	}
	return a, nil
}

func (a *App) View() string {
	var content string

	switch a.currentScreen {
	case ScreenDashboard:
		content = a.dashboard.View()
	case ScreenEstimates:
		content = a.estimates.View()
	case ScreenSettings:
		content = a.settings.View()
	}

	return lipgloss.NewStyle().
		Width(a.width).
		Height(a.height).
		Render(content)
}

func Run(opts Options) error {
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
