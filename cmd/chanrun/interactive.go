package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/config"
	"github.com/wippyai/chanio/host"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	receivedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	pumpSlice     = 50 * time.Millisecond
	maxTranscript = 200
)

type lineKind int

const (
	lineReceived lineKind = iota
	lineSent
	lineError
)

type transcriptLine struct {
	kind lineKind
	text string
}

type monitorModel struct {
	cfg      config.Config
	spec     string
	settings map[string]string

	h        *host.Host
	ch       *channel.Channel
	incoming chan transcriptLine
	input    textinput.Model
	lines    []transcriptLine
	status   string
	eof      bool
	err      error
}

func newMonitorModel(cfg config.Config, spec string, settings map[string]string) *monitorModel {
	ti := textinput.New()
	ti.Placeholder = "line to send"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()
	return &monitorModel{
		cfg:      cfg,
		spec:     spec,
		settings: settings,
		incoming: make(chan transcriptLine, 64),
		input:    ti,
	}
}

type openedMsg struct {
	err error
	h   *host.Host
	ch  *channel.Channel
}

// pumpMsg carries whatever the event queue produced during one slice.
type pumpMsg struct {
	lines []transcriptLine
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.open)
}

func (m *monitorModel) open() tea.Msg {
	ctx := context.Background()
	s, err := parseSpec(m.spec)
	if err != nil {
		return openedMsg{err: err}
	}
	h, err := host.New(m.cfg, host.WithErrorHandler(func(err error) {
		m.push(transcriptLine{kind: lineError, text: err.Error()})
	}))
	if err != nil {
		return openedMsg{err: err}
	}
	ch, err := s.open(ctx, h, "r+")
	if err != nil {
		h.Close()
		return openedMsg{err: err}
	}
	if err := configure(ch, m.settings); err != nil {
		h.Close()
		return openedMsg{err: err}
	}
	ch.SetBlocking(false)
	if ch.Mode().Readable() {
		h.Events.Register(ch, channel.DirRead, func() error {
			for {
				line, n, err := ch.Gets(ctx)
				if err != nil {
					return err
				}
				if n < 0 {
					if ch.EOF() {
						m.push(transcriptLine{kind: lineError, text: "end of file"})
						h.Events.Deregister(ch, channel.DirRead)
					}
					return nil
				}
				m.push(transcriptLine{kind: lineReceived, text: line})
			}
		})
	}
	return openedMsg{h: h, ch: ch}
}

// push never blocks the queue goroutine; a full transcript buffer drops.
func (m *monitorModel) push(l transcriptLine) {
	select {
	case m.incoming <- l:
	default:
	}
}

// pump drives the host queue for one slice and collects what it produced.
func (m *monitorModel) pump() tea.Cmd {
	h, incoming := m.h, m.incoming
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pumpSlice)
		defer cancel()
		for h.Queue.DoOneEvent(ctx, true) {
		}
		var msg pumpMsg
		for {
			select {
			case l := <-incoming:
				msg.lines = append(msg.lines, l)
			default:
				return msg
			}
		}
	}
}

func (m *monitorModel) send(text string) {
	ch := m.ch
	m.h.Queue.Post(func() {
		ctx := context.Background()
		if err := ch.WriteString(ctx, text+"\n"); err != nil {
			m.push(transcriptLine{kind: lineError, text: err.Error()})
			return
		}
		if err := ch.Flush(ctx); err != nil {
			m.push(transcriptLine{kind: lineError, text: err.Error()})
			return
		}
		m.push(transcriptLine{kind: lineSent, text: text})
	})
}

func (m *monitorModel) shutdown() {
	if m.h != nil {
		m.h.Close()
		m.h = nil
	}
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.shutdown()
			return m, tea.Quit

		case "enter":
			if m.ch == nil {
				return m, nil
			}
			text := m.input.Value()
			m.input.Reset()
			if !m.ch.Mode().Writable() {
				m.append(transcriptLine{kind: lineError, text: "channel is not writable"})
				return m, nil
			}
			m.send(text)
			return m, nil
		}

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.h, m.ch = msg.h, msg.ch
		m.refreshStatus()
		return m, m.pump()

	case pumpMsg:
		for _, l := range msg.lines {
			m.append(l)
		}
		m.refreshStatus()
		if m.h == nil {
			return m, nil
		}
		return m, m.pump()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *monitorModel) append(l transcriptLine) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxTranscript {
		m.lines = m.lines[len(m.lines)-maxTranscript:]
	}
}

func (m *monitorModel) refreshStatus() {
	if m.ch == nil {
		return
	}
	opts, err := m.ch.Options()
	if err != nil {
		m.status = err.Error()
		return
	}
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+opts[name])
	}
	m.status = strings.Join(parts, "  ")
	m.eof = m.ch.EOF()
}

func (m *monitorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if m.ch == nil {
		return "Opening channel..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Channel Monitor"))
	b.WriteString(" ")
	b.WriteString(m.ch.Name())
	b.WriteString(" ")
	b.WriteString(m.spec)
	if m.eof {
		b.WriteString(" ")
		b.WriteString(errorStyle.Render("[eof]"))
	}
	b.WriteString("\n\n")

	for _, l := range m.lines {
		switch l.kind {
		case lineSent:
			b.WriteString(sentStyle.Render("<< " + l.text))
		case lineReceived:
			b.WriteString(receivedStyle.Render(">> " + l.text))
		case lineError:
			b.WriteString(errorStyle.Render("!! " + l.text))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • esc quit"))
	return b.String()
}

func runInteractive(cfg config.Config, spec string, settings map[string]string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	model := newMonitorModel(cfg, spec, settings)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	model.shutdown()
	return err
}
