// Package ui is the interactive terminal surface: the approval queue,
// an activity feed, a chat line to the agent, and connection status.
// Built on bubbletea; the agent drives it through the agent.UI
// interface and never touches bubbletea types directly.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mixagent/internal/action"
	"mixagent/internal/agent"
	"mixagent/internal/approval"
)

const maxLogLines = 50

// External events delivered into the bubbletea loop via Program.Send.
type (
	logMsg    string
	chatMsg   string
	statusMsg string
	connMsg   agent.ConnectionStatus
	stopMsg   struct{}
)

// UI implements agent.UI on top of a bubbletea program.
type UI struct {
	queue  *approval.Queue
	onChat func(message string)

	mu      sync.Mutex
	program *tea.Program
}

var _ agent.UI = (*UI)(nil)

// New creates the UI bound to the approval queue. onChat receives chat
// lines the engineer types.
func New(queue *approval.Queue, onChat func(string)) *UI {
	return &UI{queue: queue, onChat: onChat}
}

// Run starts the interactive loop and blocks until the user quits.
func (u *UI) Run() error {
	m := newModel(u.queue, u.onChat)
	p := tea.NewProgram(m, tea.WithAltScreen())

	u.mu.Lock()
	u.program = p
	u.mu.Unlock()

	_, err := p.Run()

	u.mu.Lock()
	u.program = nil
	u.mu.Unlock()
	return err
}

// Stop ends the interactive loop.
func (u *UI) Stop() { u.send(stopMsg{}) }

// AddLog appends a line to the activity feed.
func (u *UI) AddLog(line string) { u.send(logMsg(line)) }

// AddChatResponse appends an agent reply to the chat feed.
func (u *UI) AddChatResponse(line string) { u.send(chatMsg(line)) }

// SetStatus replaces the status line.
func (u *UI) SetStatus(status string) { u.send(statusMsg(status)) }

// UpdateConnectionStatus refreshes the connection bar.
func (u *UI) UpdateConnectionStatus(status agent.ConnectionStatus) { u.send(connMsg(status)) }

func (u *UI) send(msg tea.Msg) {
	u.mu.Lock()
	p := u.program
	u.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// ── bubbletea model ──────────────────────────────────────────────────

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("150"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	selStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("237"))
)

type model struct {
	queue  *approval.Queue
	onChat func(string)

	pending  []approval.QueuedAction
	selected int

	logs     []string
	chat     []string
	logView  viewport.Model
	input    textinput.Model

	status string
	conn   agent.ConnectionStatus

	width, height int
	chatFocused   bool
}

func newModel(queue *approval.Queue, onChat func(string)) model {
	input := textinput.New()
	input.Placeholder = "talk to the agent (tab to focus)"
	input.CharLimit = 300

	return model{
		queue:   queue,
		onChat:  onChat,
		logView: viewport.New(80, 10),
		input:   input,
		status:  "Starting",
	}
}

type refreshMsg struct{}

// The pending list is polled rather than pushed: approvals can land
// from the LLM loop or expiry sweeps at any time.
const refreshInterval = 500 * time.Millisecond

func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, refreshCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logView.Width = msg.Width - 4
		m.logView.Height = maxInt(4, msg.Height-16)
		return m, nil

	case refreshMsg:
		m.pending = m.queue.Pending()
		if m.selected >= len(m.pending) {
			m.selected = maxInt(0, len(m.pending)-1)
		}
		return m, refreshCmd()

	case stopMsg:
		return m, tea.Quit

	case logMsg:
		m.logs = appendBounded(m.logs, string(msg))
		m.logView.SetContent(strings.Join(m.logs, "\n"))
		m.logView.GotoBottom()
		return m, nil

	case chatMsg:
		m.chat = appendBounded(m.chat, "agent: "+string(msg))
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case connMsg:
		m.conn = agent.ConnectionStatus(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.chatFocused {
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.chat = appendBounded(m.chat, "you: "+text)
				if m.onChat != nil {
					m.onChat(text)
				}
			}
			m.input.SetValue("")
			return m, nil
		case "tab", "esc":
			m.chatFocused = false
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.chatFocused = true
		return m, m.input.Focus()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.pending)-1 {
			m.selected++
		}
	case "y", "a":
		m.queue.Approve(m.selected)
		m.pending = m.queue.Pending()
	case "n", "r":
		m.queue.Reject(m.selected)
		m.pending = m.queue.Pending()
	case "A":
		m.queue.ApproveAllPending()
		m.pending = m.queue.Pending()
	case "R":
		m.queue.RejectAllPending()
		m.pending = m.queue.Pending()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mixagent"))
	b.WriteString("  ")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	b.WriteString(m.renderQueue())
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("Activity"))
	b.WriteString("\n")
	b.WriteString(m.logView.View())
	b.WriteString("\n\n")

	b.WriteString(m.renderChat())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("y/n approve/reject · A/R all · tab chat · q quit"))

	return b.String()
}

func (m model) renderStatus() string {
	console := badStyle.Render("console ✗")
	if m.conn.ConsoleConnected {
		console = okStyle.Render("console " + m.conn.ConsoleType)
	}
	audio := dimStyle.Render("audio off")
	if m.conn.AudioConnected {
		audio = okStyle.Render(fmt.Sprintf("audio %s %dch@%.0f",
			m.conn.AudioBackend, m.conn.AudioChannels, m.conn.AudioSampleRate))
	}
	llmState := dimStyle.Render("llm off")
	if m.conn.LLMConnected {
		llmState = okStyle.Render("llm ready")
	}
	return fmt.Sprintf("%s  %s  %s  %s", m.status, console, audio, llmState)
}

func (m model) renderQueue() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Approval queue (%d)", len(m.pending))))
	b.WriteString("\n")

	if len(m.pending) == 0 {
		b.WriteString(dimStyle.Render("  nothing pending"))
		b.WriteString("\n")
		return b.String()
	}

	for i, qa := range m.pending {
		line := fmt.Sprintf("  [%s] %s — %s",
			qa.Action.Urgency.String(), qa.Action.Describe(), qa.Action.Reason)
		if i == m.selected {
			line = selStyle.Render("▶" + line[1:])
		} else if qa.Action.Urgency == action.Immediate || qa.Action.Urgency == action.Fast {
			line = warnStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderChat() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chat"))
	b.WriteString("\n")

	start := maxInt(0, len(m.chat)-5)
	for _, line := range m.chat[start:] {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

func appendBounded(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	return lines
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
