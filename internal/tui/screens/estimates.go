package screens

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/session"
)

type estimatesMode int

const (
	estimatesModeList estimatesMode = iota
	estimatesModeEdit
)

// Estimates lists issues with their planned hours and lets the user edit
// them.
type Estimates struct {
	session *session.Session
	source  IssueSource
	width   int
	height  int

	issues    []models.Issue
	estimates models.EstimateMap
	cursor    int
	mode      estimatesMode
	input     textinput.Model
	loading   bool
	err       error
	message   string
}

func NewEstimates(s *session.Session, source IssueSource) *Estimates {
	ti := textinput.New()
	ti.Placeholder = "Hours, e.g. 2.5"
	ti.CharLimit = 10
	ti.Width = 20

	return &Estimates{
		session: s,
		source:  source,
		input:   ti,
	}
}

func (e *Estimates) SetSize(width, height int) {
	e.width = width
	e.height = height
}

func (e *Estimates) SetSource(source IssueSource) {
	e.source = source
}

type estimatesDataMsg struct {
	issues    []models.Issue
	estimates models.EstimateMap
	err       error
}

type estimateSavedMsg struct {
	issue models.Issue
	hours float64
	err   error
}

func (e *Estimates) Init() tea.Cmd {
	e.loading = true
	e.mode = estimatesModeList
	e.message = ""
	return e.loadData
}

func (e *Estimates) loadData() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issues, err := e.source.FetchIssues(ctx)
	if err != nil {
		return estimatesDataMsg{err: err}
	}
	estimates, err := e.session.LoadEstimates(ctx)
	return estimatesDataMsg{issues: issues, estimates: estimates, err: err}
}

func (e *Estimates) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case estimatesDataMsg:
		e.loading = false
		e.err = msg.err
		e.issues = msg.issues
		e.estimates = msg.estimates
		if e.cursor >= len(e.issues) {
			e.cursor = max(0, len(e.issues)-1)
		}
		return nil

	case estimateSavedMsg:
		if msg.err != nil {
			e.err = msg.err
			return nil
		}
		if e.estimates == nil {
			e.estimates = models.EstimateMap{}
		}
		e.estimates[msg.issue.ID] = msg.hours
		e.message = fmt.Sprintf("Estimated %s at %gh", msg.issue.Identifier, msg.hours)
		return nil

	case RefreshMsg:
		return e.Init()

	case tea.KeyMsg:
		return e.handleKey(msg)
	}

	if e.mode == estimatesModeEdit {
		var cmd tea.Cmd
		e.input, cmd = e.input.Update(msg)
		return cmd
	}
	return nil
}

func (e *Estimates) handleKey(msg tea.KeyMsg) tea.Cmd {
	if e.mode == estimatesModeEdit {
		return e.handleInputKey(msg)
	}

	switch msg.String() {
	case "up", "k":
		if e.cursor > 0 {
			e.cursor--
		}
	case "down", "j":
		if e.cursor < len(e.issues)-1 {
			e.cursor++
		}
	case "enter", "e":
		if len(e.issues) > 0 {
			e.mode = estimatesModeEdit
			value := ""
			if h, ok := e.estimates[e.issues[e.cursor].ID]; ok {
				value = strconv.FormatFloat(h, 'f', -1, 64)
			}
			e.input.SetValue(value)
			e.input.Focus()
		}
	case "q", "esc":
		return Navigate("dashboard")
	}
	return nil
}

func (e *Estimates) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(e.input.Value())
		e.mode = estimatesModeList
		e.input.Blur()
		if text == "" {
			return nil
		}
		hours, err := strconv.ParseFloat(text, 64)
		if err != nil || hours < 0 {
			e.err = fmt.Errorf("invalid number of hours %q", text)
			return nil
		}
		return e.save(e.issues[e.cursor], hours)

	case "esc":
		e.mode = estimatesModeList
		e.input.Blur()
		return nil
	}
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return cmd
}

func (e *Estimates) save(issue models.Issue, hours float64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := e.session.SaveEstimates(ctx, models.EstimateMap{issue.ID: hours})
		return estimateSavedMsg{issue: issue, hours: hours, err: err}
	}
}

func (e *Estimates) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("ESTIMATES"))
	b.WriteString("\n\n")

	if e.loading {
		b.WriteString("Loading...\n")
		return b.String()
	}

	if e.err != nil {
		b.WriteString(ErrorStyle.Render(errorText(e.err)))
		b.WriteString("\n\n")
		e.err = nil
	}

	if e.message != "" {
		b.WriteString(SuccessStyle.Render(e.message))
		b.WriteString("\n\n")
	}

	if e.mode == estimatesModeEdit && len(e.issues) > 0 {
		issue := e.issues[e.cursor]
		b.WriteString(fmt.Sprintf("Hours for %s %s:\n", issue.Identifier, issue.Title))
		b.WriteString(e.input.View())
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("[enter] Save  [esc] Cancel"))
		return b.String()
	}

	if len(e.issues) == 0 {
		b.WriteString(DimStyle.Render("No issues."))
		b.WriteString("\n\n")
	} else {
		for i, issue := range e.issues {
			cursor := "  "
			style := NormalStyle
			if i == e.cursor {
				cursor = "> "
				style = SelectedStyle
			}
			estimate := "-"
			if h, ok := e.estimates[issue.ID]; ok {
				estimate = fmt.Sprintf("%gh", h)
			}
			line := fmt.Sprintf("%s%-10s %s", cursor, issue.Identifier, issue.Title)
			b.WriteString(style.Render(line))
			b.WriteString("  ")
			b.WriteString(DimStyle.Render(estimate))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("[enter] Edit hours  [q] Back"))
	return b.String()
}
