package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"straf/penalty"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"well darn it all", 9, []string{"well darn", "it all"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"a b", 0, []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestRenderStars(t *testing.T) {
	tests := []struct {
		severity int
		want     string
	}{
		{0, "☆☆☆☆☆"},
		{1, "★☆☆☆☆"},
		{3, "★★★☆☆"},
		{5, "★★★★★"},
	}
	for _, tt := range tests {
		if got := stripANSI(renderStars(tt.severity)); got != tt.want {
			t.Errorf("renderStars(%d) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	esc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			esc = true
		case esc && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			esc = false
		case !esc:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func update(m tuiModel, msgs ...tea.Msg) tuiModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(tuiModel)
	}
	return m
}

func TestTUIModelFoldsSinkCalls(t *testing.T) {
	m := update(tuiModel{},
		tea.WindowSizeMsg{Width: 60, Height: 16},
		showMsg{Label: "darn", At: time.Now()},
		statusMsg{Severity: 2},
	)
	if m.status.Severity != 2 || m.status.Label != "darn" || !m.status.Visible {
		t.Fatalf("status = %+v", m.status)
	}

	m = update(m, hideMsg{})
	if m.status.Severity != 0 || m.status.Visible {
		t.Errorf("status after hide = %+v", m.status)
	}
}

func TestTUIViewShowsPenaltyAndPhrase(t *testing.T) {
	active := &penalty.Active{Label: "darn", StartedAt: time.Now(), Duration: 5 * time.Second}
	m := tuiModel{
		snapshot: func() penalty.State {
			return penalty.State{Active: active, Severity: 2, Queue: []penalty.Request{{Reason: "heck"}}}
		},
	}
	m = update(m,
		tea.WindowSizeMsg{Width: 60, Height: 20},
		showMsg{Label: "darn", At: time.Now()},
		statusMsg{Severity: 2, Label: ""},
		phraseMsg{Text: "well darn it", Matches: []string{"darn"}},
		modeLineMsg{Text: "[silent | fake | 3 words]"},
		tickMsg(time.Now()),
	)

	view := stripANSI(m.View())
	for _, want := range []string{"★★☆☆☆", "darn", `serving "darn"`, "queued: heck", "well", "it", "[silent | fake | 3 words]", "1 matches so far"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if n := strings.Count(view, "\n"); n != 19 {
		t.Errorf("view has %d lines, want 20", n+1)
	}
}

func TestTUIViewIdle(t *testing.T) {
	m := update(tuiModel{}, tea.WindowSizeMsg{Width: 40, Height: 12})
	view := stripANSI(m.View())
	if !strings.Contains(view, "listening") || !strings.Contains(view, "nothing heard yet") {
		t.Errorf("idle view:\n%s", view)
	}
	if (tuiModel{}).View() != "Loading..." {
		t.Error("zero-size model should render a placeholder")
	}
}

func TestHighlightKeepsWords(t *testing.T) {
	got := stripANSI(highlight("Well, DARN it!", []string{"darn"}))
	if got != "Well, DARN it!" {
		t.Errorf("highlight changed text: %q", got)
	}
}

func TestVignetteBarWidth(t *testing.T) {
	for sev := -1; sev <= penalty.MaxSeverity+1; sev++ {
		bar := stripANSI(vignetteBar(sev, 12, 0, true))
		if bar != strings.Repeat(" ", 12) {
			t.Errorf("severity %d: bar = %q", sev, bar)
		}
	}
}
