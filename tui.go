package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"straf/log"
	"straf/overlay"
	"straf/penalty"
)

// TUI message types
type showMsg struct {
	Label string
	At    time.Time
}
type statusMsg struct {
	Severity int
	Label    string
}
type hideMsg struct{}
type phraseMsg struct {
	Text    string
	Matches []string
}
type modeLineMsg struct{ Text string }
type tickMsg time.Time

type tuiModel struct {
	status        overlay.Status
	snapshot      func() penalty.State
	state         penalty.State
	frame         int
	width, height int
	modeLine      string
	lastText      string
	lastMatches   []string
	phraseCount   int
	matchCount    int
}

// Vignette shades by severity, from terminal grey to deep red (ANSI 256).
var vignetteColors = [penalty.MaxSeverity + 1]string{"236", "94", "130", "124", "88", "52"}

var (
	starOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	starOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	matchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	phraseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "p":
			setPaused(!pauseWanted.Load())
		}

	case tickMsg:
		m.frame++
		if m.snapshot != nil {
			m.state = m.snapshot()
		}
		return m, tuiTick()

	case showMsg:
		m.status.Show(msg.Label, msg.At)

	case statusMsg:
		m.status.Update(msg.Severity, msg.Label)

	case hideMsg:
		m.status.Hide()

	case phraseMsg:
		m.phraseCount++
		m.matchCount += len(msg.Matches)
		m.lastText = msg.Text
		m.lastMatches = msg.Matches

	case modeLineMsg:
		m.modeLine = msg.Text

	}
	return m, nil
}

func renderStars(severity int) string {
	var b strings.Builder
	for i := range penalty.MaxSeverity {
		if i < severity {
			b.WriteString(starOnStyle.Render("★"))
		} else {
			b.WriteString(starOffStyle.Render("☆"))
		}
	}
	return b.String()
}

// vignetteBar is a full-width band whose colour follows severity. It pulses
// gently while a penalty is being served.
func vignetteBar(severity, width, frame int, serving bool) string {
	severity = min(max(severity, 0), penalty.MaxSeverity)
	c := vignetteColors[severity]
	if serving && frame%10 < 5 && severity < penalty.MaxSeverity {
		c = vignetteColors[severity+1]
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(c)).Render(strings.Repeat(" ", max(width, 1)))
}

func highlight(text string, matches []string) string {
	if len(matches) == 0 {
		return phraseStyle.Render(text)
	}
	words := strings.Fields(text)
	for i, w := range words {
		norm := strings.ToLower(strings.Trim(w, ".,!?;:\"'"))
		for _, mw := range matches {
			if norm == mw {
				words[i] = matchStyle.Render(w)
				break
			}
		}
		if words[i] == w {
			words[i] = phraseStyle.Render(w)
		}
	}
	return strings.Join(words, " ")
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	serving := m.state.Active != nil
	bar := vignetteBar(m.status.Severity, m.width, m.frame, serving)

	var lines []string
	lines = append(lines, bar, "")

	header := "  " + renderStars(m.status.Severity)
	if m.status.Label != "" && m.status.Severity > 0 {
		header += "  " + labelStyle.Render(m.status.Label)
	}
	lines = append(lines, header)

	switch {
	case pauseWanted.Load():
		lines = append(lines, dimStyle.Render("  ‖ paused"))
	case serving:
		left := time.Until(m.state.Active.EndsAt()).Round(100 * time.Millisecond)
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  serving %q, %s left", m.state.Active.Label, max(left, 0))))
	case m.status.Severity > 0:
		lines = append(lines, dimStyle.Render("  waiting for cooldown"))
	default:
		lines = append(lines, dimStyle.Render("  ○ listening"))
	}
	if n := len(m.state.Queue); n > 0 {
		reasons := make([]string, n)
		for i, r := range m.state.Queue {
			reasons[i] = r.Reason
		}
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  queued: %s", strings.Join(reasons, ", "))))
	}

	lines = append(lines, "")
	if m.lastText != "" {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  last phrase (#%d, %d matches so far)", m.phraseCount, m.matchCount)))
		for _, l := range wrapText(m.lastText, max(m.width-4, 10)) {
			lines = append(lines, "  "+highlight(l, m.lastMatches))
		}
	} else {
		lines = append(lines, dimStyle.Render("  nothing heard yet"))
	}

	lines = append(lines, "")
	if m.modeLine != "" {
		lines = append(lines, dimStyle.Render("  "+m.modeLine))
	}
	lines = append(lines, dimStyle.Render("  p to pause · q to quit · straf "+version))

	for len(lines) < m.height-1 {
		lines = append(lines, "")
	}
	if len(lines) > m.height-1 {
		lines = lines[:max(m.height-1, 1)]
	}
	return strings.Join(append(lines, bar), "\n")
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

const tuiQueue = 64

// tuiSink drives the bubbletea program. program.Send blocks until the
// program reads the message, so sink calls go through a bounded queue
// pumped by one goroutine; a full queue drops the update.
type tuiSink struct {
	program *tea.Program
	onQuit  func()
	msgs    chan tea.Msg
	done    chan struct{}
	once    sync.Once
}

func newTUISink(snapshot func() penalty.State, onQuit func()) *tuiSink {
	m := tuiModel{snapshot: snapshot}
	return &tuiSink{
		program: tea.NewProgram(m, tea.WithAltScreen()),
		onQuit:  onQuit,
		msgs:    make(chan tea.Msg, tuiQueue),
		done:    make(chan struct{}),
	}
}

func (s *tuiSink) Init() error {
	go func() {
		defer close(s.done)
		if _, err := s.program.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		if s.onQuit != nil {
			s.onQuit()
		}
	}()
	go func() {
		for {
			select {
			case msg := <-s.msgs:
				s.program.Send(msg)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

func (s *tuiSink) Close() {
	s.once.Do(func() {
		s.program.Quit()
		<-s.done
	})
}

// post queues msg for the program without blocking.
func (s *tuiSink) post(msg tea.Msg) {
	select {
	case s.msgs <- msg:
	default:
		log.Debug("tui: update dropped")
	}
}

func (s *tuiSink) ShowPenalty(label string) { s.post(showMsg{Label: label, At: time.Now()}) }

func (s *tuiSink) UpdateStatus(severity int, label string) {
	s.post(statusMsg{Severity: severity, Label: label})
}

func (s *tuiSink) Hide() { s.post(hideMsg{}) }
