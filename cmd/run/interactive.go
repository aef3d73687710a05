package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/jsbridge/config"
)

const visibleEntries = 12

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	moduleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// lockedBuffer collects console output written from any goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// take returns and clears the buffered output.
func (b *lockedBuffer) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

type entry struct {
	err    error
	src    string
	output string
	result string
}

type replModel struct {
	ctx     context.Context
	cfg     config.Config
	log     *zap.Logger
	err     error
	sess    *session
	out     *lockedBuffer
	script  string
	entries []entry
	history []string
	modules []string
	input   textinput.Model
	histIdx int
	busy    bool
}

type loadedMsg struct {
	err     error
	sess    *session
	boot    *entry
	modules []string
}

type evalMsg struct {
	entry entry
}

func newReplModel(ctx context.Context, cfg config.Config, log *zap.Logger, script string) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(cfg.Namespace + "> ")
	ti.Placeholder = cfg.Namespace + ".modules.Demo.add(2, 3)"
	ti.Width = 80
	ti.Focus()
	return &replModel{
		ctx:    ctx,
		cfg:    cfg,
		log:    log,
		out:    &lockedBuffer{},
		script: script,
		input:  ti,
	}
}

func (m *replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.load)
}

func (m *replModel) load() tea.Msg {
	sess, err := newSession(m.ctx, m.cfg, m.log, m.out)
	if err != nil {
		return loadedMsg{err: err}
	}
	msg := loadedMsg{sess: sess, modules: sess.modules(m.ctx)}
	if m.script != "" {
		src, err := os.ReadFile(m.script)
		if err != nil {
			sess.close(m.ctx)
			return loadedMsg{err: fmt.Errorf("read script: %w", err)}
		}
		e := m.run(sess, m.script, string(src))
		e.src = "load " + m.script
		msg.boot = &e
	}
	return msg
}

func (m *replModel) run(sess *session, name, src string) entry {
	res, err := sess.eval(m.ctx, name, src)
	return entry{
		src:    src,
		output: strings.TrimRight(m.out.take(), "\n"),
		result: res,
		err:    err,
	}
}

func (m *replModel) evaluate(src string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return evalMsg{entry: m.run(sess, "<repl>", src)}
	}
}

func (m *replModel) quit() (tea.Model, tea.Cmd) {
	if m.sess != nil {
		m.sess.close(m.ctx)
		m.sess = nil
	}
	return m, tea.Quit
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d", "esc":
			return m.quit()

		case "enter":
			src := strings.TrimSpace(m.input.Value())
			if src == "" || m.busy || m.sess == nil {
				return m, nil
			}
			m.history = append(m.history, src)
			m.histIdx = len(m.history)
			m.input.Reset()
			m.busy = true
			return m, m.evaluate(src)

		case "up":
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.history)
				m.input.Reset()
			}
			return m, nil
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.modules = msg.modules
		if msg.boot != nil {
			m.entries = append(m.entries, *msg.boot)
		}
		return m, nil

	case evalMsg:
		m.busy = false
		m.entries = append(m.entries, msg.entry)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if m.sess == nil {
		return "Starting runtime..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("jsbridge REPL"))
	b.WriteString(" ")
	b.WriteString(m.cfg.Namespace)
	b.WriteString("\n")

	mods := make([]string, len(m.modules))
	for i, name := range m.modules {
		mods[i] = moduleStyle.Render(name)
	}
	b.WriteString("modules: ")
	b.WriteString(strings.Join(mods, ", "))
	b.WriteString("\n\n")

	start := max(0, len(m.entries)-visibleEntries)
	for _, e := range m.entries[start:] {
		b.WriteString(promptStyle.Render("> "))
		b.WriteString(firstLine(e.src))
		b.WriteString("\n")
		if e.output != "" {
			b.WriteString(outputStyle.Render(e.output))
			b.WriteString("\n")
		}
		if e.err != nil {
			b.WriteString(errorStyle.Render(e.err.Error()))
		} else {
			b.WriteString(resultStyle.Render(e.result))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.busy {
		b.WriteString(helpStyle.Render("evaluating..."))
	} else {
		b.WriteString(helpStyle.Render("enter eval • ↑/↓ history • esc quit"))
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func runInteractive(ctx context.Context, cfg config.Config, log *zap.Logger, script string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive mode requires a terminal")
	}
	m := newReplModel(ctx, cfg, log, script)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if m.sess != nil {
		m.sess.close(ctx)
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
