package screens

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Settings edits the Linear personal access token.
type Settings struct {
	width  int
	height int

	current func() string
	save    func(token string) error
	input   textinput.Model
	err     error
}

func NewSettings(current func() string, save func(token string) error) *Settings {
	ti := textinput.New()
	ti.Placeholder = "lin_api_..."
	ti.CharLimit = 200
	ti.Width = 48
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'

	return &Settings{current: current, save: save, input: ti}
}

func (s *Settings) SetSize(width, height int) {
	s.width = width
	s.height = height
}

func (s *Settings) Init() tea.Cmd {
	s.err = nil
	s.input.SetValue(s.current())
	s.input.Focus()
	return textinput.Blink
}

func (s *Settings) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			token := strings.TrimSpace(s.input.Value())
			if err := s.save(token); err != nil {
				s.err = err
				return nil
			}
			s.input.Blur()
			return func() tea.Msg { return TokenSavedMsg{Token: token} }
		case "esc":
			s.input.Blur()
			return Navigate("dashboard")
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *Settings) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("LINEAR SETTINGS"))
	b.WriteString("\n\n")

	if s.err != nil {
		b.WriteString(ErrorStyle.Render("Error: " + s.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString("Personal Access Token:\n")
	b.WriteString(s.input.View())
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("Generate a token in your Linear Settings > API."))
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("[enter] Save token  [esc] Cancel"))
	return b.String()
}
