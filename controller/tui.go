package controller

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fab387"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
)

// Labels shown for the built-in commands. Unknown names are shown verbatim.
var commandLabels = map[string]string{
	"quit":                         "Quit",
	"print_windows":                "Print Windows",
	"hide_windows":                 "Hide Windows",
	"set_persistent_windows_false": "Set Persistent Windows False",
	"print_info":                   "Print Info",
	"track_window_events":          "Track Window Events",
}

// SendFunc delivers one command to the attached endpoint.
type SendFunc func(ctx context.Context, cmd string) error

// ---------------------------------------------------------------------------
// Command list items
// ---------------------------------------------------------------------------

type commandItem struct {
	name string
}

func (c commandItem) Title() string {
	if label, ok := commandLabels[c.name]; ok {
		return label
	}
	return c.name
}
func (c commandItem) Description() string { return c.name }
func (c commandItem) FilterValue() string { return c.name }

type commandDelegate struct{}

func (d commandDelegate) Height() int                             { return 1 }
func (d commandDelegate) Spacing() int                            { return 0 }
func (d commandDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d commandDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(commandItem)
	if !ok {
		return
	}
	prefix := "  "
	if index == m.Index() {
		prefix = cursorStyle.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s", prefix, entry.Title(), helpStyle.Render("("+entry.name+")"))
}

// ---------------------------------------------------------------------------
// Key bindings
// ---------------------------------------------------------------------------

type keyMap struct {
	Send key.Binding
	Quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Send: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "send")),
		Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "exit")),
	}
}

type sentMsg struct {
	command string
	err     error
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

// Model is the interactive command picker for one endpoint.
type Model struct {
	endpoint string
	send     SendFunc
	list     list.Model
	keys     keyMap
	status   string
	failed   bool
	sent     []string
}

// NewModel builds a picker offering names for the endpoint.
func NewModel(endpoint string, names []string, send SendFunc) Model {
	items := make([]list.Item, len(names))
	for i, n := range names {
		items[i] = commandItem{name: n}
	}

	l := list.New(items, commandDelegate{}, 0, 0)
	l.Title = "Vasco Controller: " + endpoint
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	return Model{
		endpoint: endpoint,
		send:     send,
		list:     l,
		keys:     newKeyMap(),
	}
}

// Sent returns the commands delivered so far, oldest first.
func (m Model) Sent() []string {
	return append([]string(nil), m.sent...)
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
		return m, nil
	case sentMsg:
		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("failed to send %s: %v", msg.command, msg.err), true
			return m, nil
		}
		m.sent = append(m.sent, msg.command)
		m.status, m.failed = "sent "+msg.command, false
		if msg.command == "quit" {
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Send):
			item, ok := m.list.SelectedItem().(commandItem)
			if !ok {
				return m, nil
			}
			return m, m.sendCmd(item.name)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) sendCmd(name string) tea.Cmd {
	send := m.send
	return func() tea.Msg {
		return sentMsg{command: name, err: send(context.Background(), name)}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.list.View())
	b.WriteString("\n")
	switch {
	case m.status == "":
	case m.failed:
		b.WriteString(errStyle.Render(m.status))
	default:
		b.WriteString(okStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • q exit"))
	return b.String()
}

// RunUI runs the picker until the user exits or sends quit.
func RunUI(ctx context.Context, endpoint string, names []string, send SendFunc) error {
	p := tea.NewProgram(NewModel(endpoint, names, send), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
