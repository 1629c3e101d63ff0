package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"librarian/chat"
	"librarian/turn"
)

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type recTickMsg time.Time
type turnDoneMsg struct{ err error }

var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	userLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	botLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	userTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	botTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	chipStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	recStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	idleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

type chatModel struct {
	app *app

	vp    viewport.Model
	input textinput.Model

	width, height int
	ready         bool

	state      turn.State
	recStart   time.Time
	recSeconds float64
	level      float64
	monitor    *silenceMonitor
	noVoice    bool
	notice     string
}

func NewTUIProgram(a *app) *tea.Program {
	ti := textinput.New()
	ti.Placeholder = "Ask for a book..."
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	m := chatModel{
		app:   a,
		input: ti,
		state: turn.StateIdle,
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func recTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return recTickMsg(t)
	})
}

func (m chatModel) submitCmd(prompt string) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: m.app.seq.SubmitText(context.Background(), prompt)}
	}
}

func (m chatModel) stopVoiceCmd() tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: m.app.seq.StopVoice(context.Background())}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 5
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.vp.Width = m.width
			m.vp.Height = vpHeight
		}
		m.input.Width = m.width - 4
		m.vp.SetContent(m.renderHistory())
		m.vp.GotoBottom()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			prompt := m.input.Value()
			m.input.Reset()
			m.notice = ""
			return m, m.submitCmd(prompt)

		case "ctrl+r":
			m.notice = ""
			if m.state == turn.StateRecording {
				return m, m.stopVoiceCmd()
			}
			if err := m.app.seq.StartVoice(); err != nil {
				m.notice = startVoiceNotice(err)
			}
			return m, nil

		case "ctrl+t":
			on := m.app.ToggleSpeak()
			m.notice = toggleNotice("read replies aloud", on)
			return m, nil

		case "ctrl+g":
			on := m.app.ToggleCovers()
			m.notice = toggleNotice("cover images", on)
			return m, nil

		case "ctrl+y":
			if text, ok := lastAssistantText(m.app.history); ok {
				if err := clipboard.WriteAll(text); err != nil {
					m.notice = fmt.Sprintf("copy failed: %v", err)
				} else {
					m.notice = "last reply copied"
				}
			} else {
				m.notice = "nothing to copy yet"
			}
			return m, nil

		case "ctrl+d":
			m.app.Logout()
			return m, tea.Quit
		}

	case TurnChangedMsg:
		m.state = msg.State
		if msg.State == turn.StateRecording {
			m.recStart = time.Now()
			m.recSeconds = 0
			m.level = 0
			m.monitor = newSilenceMonitor()
			m.noVoice = false
			cmds = append(cmds, recTick())
		}
		if msg.State == turn.StateIdle || msg.State == turn.StateError {
			m.noVoice = false
		}

	case recTickMsg:
		if m.state == turn.StateRecording {
			m.recSeconds = time.Since(m.recStart).Seconds()
			switch m.monitor.Tick(m.level > speechRMS) {
			case SilenceWarn, SilenceRepeat:
				m.noVoice = true
			case SilenceWarnClear:
				m.noVoice = false
			}
			cmds = append(cmds, recTick())
		}

	case AudioLevelMsg:
		if m.state == turn.StateRecording {
			m.level = m.level*0.6 + msg.Level*0.4
		}

	case HistoryChangedMsg:
		if m.ready {
			m.vp.SetContent(m.renderHistory())
			m.vp.GotoBottom()
		}

	case turnDoneMsg:
		if errors.Is(msg.err, turn.ErrTurnInProgress) {
			m.notice = "still working on the last request"
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.vp, cmd = m.vp.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func startVoiceNotice(err error) string {
	if errors.Is(err, turn.ErrTurnInProgress) {
		return "still working on the last request"
	}
	return fmt.Sprintf("microphone error: %v", err)
}

func toggleNotice(what string, on bool) string {
	if on {
		return what + ": on"
	}
	return what + ": off"
}

func lastAssistantText(h *chat.History) (string, bool) {
	msgs := h.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant && msgs[i].Kind == chat.KindText {
			return msgs[i].Text, true
		}
	}
	return "", false
}

func (m chatModel) renderHistory() string {
	wrapWidth := m.width - 2
	if wrapWidth < 20 {
		wrapWidth = 20
	}
	wrap := lipgloss.NewStyle().Width(wrapWidth)

	var b strings.Builder
	for _, msg := range m.app.history.Messages() {
		var label lipgloss.Style
		var text lipgloss.Style
		name := "librarian"
		if msg.Role == chat.RoleUser {
			label = userLabelStyle
			text = userTextStyle
			name = m.app.UserName()
		} else {
			label = botLabelStyle
			text = botTextStyle
			if msg.Error {
				text = errTextStyle
			}
		}

		b.WriteString(label.Render(name))
		b.WriteString("\n")
		if msg.Kind == chat.KindImage {
			chip := fmt.Sprintf("[cover image · %.1f KB]", float64(len(msg.Image))/1024)
			b.WriteString(chipStyle.Render(chip))
		} else {
			b.WriteString(wrap.Inherit(text).Render(msg.Text))
		}
		b.WriteString("\n\n")
	}
	if b.Len() == 0 {
		return idleStyle.Render("Ask for a book recommendation, or press ctrl+r and speak.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func levelBar(level float64) string {
	n := int(level * 120)
	if n > 20 {
		n = 20
	}
	return strings.Repeat("▌", n) + strings.Repeat(" ", 20-n)
}

func (m chatModel) statusLine() string {
	switch m.state {
	case turn.StateRecording:
		line := recStyle.Render(fmt.Sprintf("● REC %.1fs ", m.recSeconds)) + levelBar(m.level)
		if m.noVoice {
			line += warnStyle.Render("  ⚠ no voice detected")
		}
		return line
	case turn.StateUploading:
		return busyStyle.Render("uploading audio...")
	case turn.StateCreatingJob:
		return busyStyle.Render("starting transcription...")
	case turn.StatePolling:
		return busyStyle.Render("transcribing...")
	case turn.StateDispatching:
		return busyStyle.Render("thinking...")
	case turn.StateError:
		return errTextStyle.Render("error")
	default:
		if m.notice != "" {
			return noticeStyle.Render(m.notice)
		}
		return idleStyle.Render("ready")
	}
}

func (m chatModel) helpLine() string {
	prefs := m.app.Prefs()
	return helpStyle.Render(fmt.Sprintf(
		"enter send · ctrl+r mic · ctrl+t speech %s · ctrl+g covers %s · ctrl+y copy · ctrl+d logout · ctrl+c quit",
		onOff(prefs.SpeakReplies), onOff(prefs.GenerateImage)))
}

func onOff(b bool) string {
	if b {
		return "[on]"
	}
	return "[off]"
}

func (m chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render("librarian — signed in as " + m.app.UserName())
	return strings.Join([]string{
		header,
		m.vp.View(),
		m.statusLine(),
		m.input.View(),
		m.helpLine(),
	}, "\n")
}
