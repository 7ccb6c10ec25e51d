package audio

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var ErrSelectionAborted = errors.New("device selection aborted")

var (
	pickTitle    = lipgloss.NewStyle().Bold(true)
	pickCursor   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	pickDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pickBTBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	pickBTNotice = "bluetooth headsets usually record narrowband audio"
)

type pickerModel struct {
	devices []DeviceInfo
	cursor  int
	chosen  *DeviceInfo
	aborted bool
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(m.devices)-1)
	case "enter":
		m.chosen = &m.devices[m.cursor]
		return m, tea.Quit
	case "ctrl+c", "q", "esc":
		m.aborted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.chosen != nil || m.aborted {
		return ""
	}
	var b strings.Builder
	b.WriteString(pickTitle.Render("Select the microphone to listen on"))
	b.WriteString(pickDim.Render("  (↑/↓, enter to confirm)"))
	b.WriteString("\n\n")
	for i, d := range m.devices {
		line := d.Name
		if IsBluetooth(d.Name) {
			line += " " + pickBTBadge.Render("[bluetooth]")
		}
		if i == m.cursor {
			b.WriteString(pickCursor.Render("  ▶ ") + line + "\n")
		} else {
			b.WriteString("    " + line + "\n")
		}
	}
	if IsBluetooth(m.devices[m.cursor].Name) {
		b.WriteString("\n" + pickDim.Render(pickBTNotice) + "\n")
	}
	return b.String()
}

// SelectDevice lets the user pick a capture device on the terminal. With a
// single device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("device picker needs a terminal; use -device instead")
	}
	final, err := tea.NewProgram(pickerModel{devices: devices}).Run()
	if err != nil {
		return nil, fmt.Errorf("device picker: %w", err)
	}
	m := final.(pickerModel)
	if m.chosen == nil {
		return nil, ErrSelectionAborted
	}
	return m.chosen, nil
}
