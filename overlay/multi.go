package overlay

import "fmt"

// Multi forwards every call to each sink in order.
type Multi struct {
	sinks  []Overlay
	inited int
}

func NewMulti(sinks ...Overlay) *Multi {
	return &Multi{sinks: sinks}
}

// Init initializes the sinks in order. On the first failure the sinks
// already initialized are closed again.
func (m *Multi) Init() error {
	for i, s := range m.sinks {
		if err := s.Init(); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.sinks[j].Close()
			}
			m.inited = 0
			return fmt.Errorf("overlay %d: %w", i, err)
		}
		m.inited = i + 1
	}
	return nil
}

func (m *Multi) Close() {
	for i := m.inited - 1; i >= 0; i-- {
		m.sinks[i].Close()
	}
	m.inited = 0
}

func (m *Multi) ShowPenalty(label string) {
	for _, s := range m.sinks {
		s.ShowPenalty(label)
	}
}

func (m *Multi) UpdateStatus(severity int, label string) {
	for _, s := range m.sinks {
		s.UpdateStatus(severity, label)
	}
}

func (m *Multi) Hide() {
	for _, s := range m.sinks {
		s.Hide()
	}
}
