package viz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/ufosim/internal/command"
	"github.com/san-kum/ufosim/internal/phase"
	"github.com/san-kum/ufosim/internal/sim"
	"github.com/san-kum/ufosim/internal/ufo"
)

const (
	trackWidth      = 48
	trackHeight     = 16
	historyCapacity = 300
	frameRate       = 20
)

// Controls is what the cockpit needs from a simulation.
type Controls interface {
	sim.Cockpit
	Pause()
	Resume()
	Paused() bool
	Reset() (ufo.State, error)
	Stagnant() bool
}

type tickMsg time.Time

// DoneMsg tells the cockpit the simulation has stopped.
type DoneMsg struct{ Err error }

type Cockpit struct {
	ctl    Controls
	styles styles

	snap     ufo.State
	phase    phase.Phase
	maneuver phase.ManeuverAnalysis
	stagnant bool
	paused   bool

	track     *Track
	altitudes []float64
	sampled   bool
	lastT     float64

	done     bool
	lastErr  error
	showHelp bool
}

func NewCockpit(ctl Controls, theme Theme) Cockpit {
	return Cockpit{
		ctl:       ctl,
		styles:    newStyles(theme),
		track:     NewTrack(trackWidth, trackHeight, historyCapacity*4),
		altitudes: make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Cockpit) Init() tea.Cmd {
	return tick()
}

func (m Cockpit) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.ctl.Paused() {
				m.ctl.Resume()
			} else {
				m.ctl.Pause()
			}
		case "r":
			if _, err := m.ctl.Reset(); err != nil {
				m.lastErr = err
			}
			m.track.Reset()
			m.altitudes = m.altitudes[:0]
			m.sampled = false
		case "up", "k":
			m.steer("speed +5", 5, 0, 0)
		case "down", "j":
			m.steer("speed -5", -5, 0, 0)
		case "left", "h":
			m.steer("turn left", 0, 15, 0)
		case "right", "l":
			m.steer("turn right", 0, -15, 0)
		case "w":
			m.steer("pitch up", 0, 0, 5)
		case "s":
			m.steer("pitch down", 0, 0, -5)
		case "t":
			m.styles = newStyles(nextTheme(m.styles.theme))
		case "?":
			m.showHelp = !m.showHelp
		}
		m.refresh()
	case tickMsg:
		m.refresh()
		if !m.done {
			return m, tick()
		}
	case DoneMsg:
		m.done = true
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.lastErr = msg.Err
		}
		m.refresh()
	}
	return m, nil
}

// steer submits a one-command queue adding to the pending deltas.
func (m *Cockpit) steer(label string, dv, dd, di float64) {
	q := m.ctl.CreateCommandQueue()
	err := q.Push(command.SetState(func(s ufo.State) ufo.State {
		return s.AddDeltas(dv, dd, di)
	}).Labeled(label))
	if err == nil {
		err = m.ctl.ExecuteCommandQueue(q)
	}
	if err != nil {
		m.lastErr = err
	}
}

func (m *Cockpit) refresh() {
	m.snap = m.ctl.Snapshot()
	m.phase = m.ctl.Phase()
	m.maneuver = m.ctl.Maneuver()
	m.stagnant = m.ctl.Stagnant()
	m.paused = m.ctl.Paused()

	if m.sampled && m.snap.FlightTime == m.lastT {
		return
	}
	m.sampled, m.lastT = true, m.snap.FlightTime
	m.track.Add(m.snap.X, m.snap.Y)
	m.altitudes = append(m.altitudes, m.snap.Z)
	if len(m.altitudes) > historyCapacity {
		m.altitudes = m.altitudes[1:]
	}
}

func (m Cockpit) View() string {
	st := m.styles
	s := m.snap

	status := "FLYING"
	switch {
	case m.done:
		status = "STOPPED"
	case m.paused:
		status = "PAUSED"
	}

	var left strings.Builder
	left.WriteString(st.title.Render("UFOSIM") + "  " + st.badge(m.phase) + "  " + st.hint.Render(status) + "\n\n")
	left.WriteString(m.track.String())

	var right strings.Builder
	right.WriteString(st.row("time", fmt.Sprintf("%.2fs", s.FlightTime)))
	right.WriteString(st.row("position", fmt.Sprintf("%.1f, %.1f", s.X, s.Y)))
	right.WriteString(st.row("altitude", fmt.Sprintf("%.2f m", s.Z)))
	right.WriteString(st.row("speed", fmt.Sprintf("%.2f m/s %s", s.V, bar(s.V/m.ctl.Config().MaxVelocity, 10))))
	right.WriteString(st.row("heading", fmt.Sprintf("%.1f°", s.D)))
	right.WriteString(st.row("pitch", fmt.Sprintf("%.1f°", s.I)))
	right.WriteString(st.row("distance", fmt.Sprintf("%.1f m", s.Dist)))
	if s.HasPendingDeltas() {
		right.WriteString(st.row("pending", fmt.Sprintf("Δv %.1f  Δd %.1f  Δi %.1f", s.DeltaV, s.DeltaD, s.DeltaI)))
	}
	right.WriteString("\n")

	a := m.maneuver
	right.WriteString(st.flag("climb", a.Ascending) + " " + st.flag("descend", a.Descending) + " " + st.flag("turn", a.Turning) + "\n")
	right.WriteString(st.flag("accel", a.Accelerating) + " " + st.flag("decel", a.Decelerating) + " " + st.flag("stuck", m.stagnant) + "\n")

	if len(m.altitudes) > 1 {
		chart := asciigraph.Plot(m.altitudes, asciigraph.Height(6), asciigraph.Width(36), asciigraph.Caption("altitude"))
		right.WriteString("\n" + st.graph.Render(chart) + "\n")
	}
	if m.lastErr != nil {
		right.WriteString("\n" + lipgloss.NewStyle().Foreground(st.theme.Error).Render(m.lastErr.Error()) + "\n")
	}
	right.WriteString("\n" + st.hint.Render("SP:Pause R:Reset Q:Quit ?:Help"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, st.panel.Render(left.String()), st.panel.Render(right.String()))
	if m.showHelp {
		return st.panel.Render(help) + "\n" + view
	}
	return view
}

const help = `Space       pause / resume
R           reset to a fresh vehicle
Up/Down     speed +/- 5 m/s
Left/Right  turn 15°
W/S         pitch up / down 5°
T           next theme
Q           quit`

// Run shows the cockpit while s runs, and stops s when the cockpit quits.
func Run(ctx context.Context, s *sim.Simulation, theme Theme, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewCockpit(s, theme), opts...)
	errc := make(chan error, 1)
	go func() {
		err := s.Run(ctx)
		p.Send(DoneMsg{Err: err})
		errc <- err
	}()

	_, uiErr := p.Run()
	cancel()
	simErr := <-errc
	if uiErr != nil {
		return fmt.Errorf("viz: %w", uiErr)
	}
	if errors.Is(simErr, context.Canceled) {
		return nil
	}
	return simErr
}
