// ABOUTME: Bubbletea model for the experimenter console
// ABOUTME: Shows session progress and turns key presses into responses
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/session"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/internal/staircase"
	"github.com/DavidsonMattJ/active-perception-Auditory-RhythmicStim-v1/pkg/stimulus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// feedbackHold is how long practice feedback stays on screen
const feedbackHold = 700 * time.Millisecond

// Keys receives the participant's key presses
type Keys interface {
	Press(side stimulus.Side)
	RequestStart()
}

// Audio is the output's volume control
type Audio interface {
	SetVolume(volume int)
	GetVolume() int
	SetMuted(muted bool)
	IsMuted() bool
}

// volumeStep is the change per up/down key press
const volumeStep = 5

// StatusMsg updates the session display
type StatusMsg struct {
	Session   session.Status
	Staircase map[string]staircase.Snapshot
}

// FeedbackMsg shows practice feedback
type FeedbackMsg struct {
	Correct bool
}

type feedbackExpiredMsg struct {
	seq int
}

// Model is the console state
type Model struct {
	keys     Keys
	audio    Audio
	quit     chan struct{}
	title    string
	mapping  string
	status   session.Status
	stairs   map[string]staircase.Snapshot
	feedback *bool
	fbSeq    int

	showDebug bool
	quitting  bool
	presses   int

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = msg.Session
		if msg.Staircase != nil {
			m.stairs = msg.Staircase
		}
	case FeedbackMsg:
		correct := msg.Correct
		m.feedback = &correct
		m.fbSeq++
		seq := m.fbSeq
		return m, tea.Tick(feedbackHold, func(time.Time) tea.Msg {
			return feedbackExpiredMsg{seq: seq}
		})
	case feedbackExpiredMsg:
		if msg.seq == m.fbSeq {
			m.feedback = nil
		}
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.quit <- struct{}{}:
		default:
		}
		return m, tea.Quit
	case "left", "a":
		m.press(stimulus.SideLeft)
	case "right", "l":
		m.press(stimulus.SideRight)
	case " ", "enter":
		if m.keys != nil && m.status.Phase == session.PhaseWaiting {
			m.keys.RequestStart()
		}
	case "up":
		m.adjustVolume(volumeStep)
	case "down":
		m.adjustVolume(-volumeStep)
	case "m":
		if m.audio != nil {
			m.audio.SetMuted(!m.audio.IsMuted())
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) press(side stimulus.Side) {
	m.presses++
	if m.keys != nil {
		m.keys.Press(side)
	}
}

func (m *Model) adjustVolume(step int) {
	if m.audio == nil {
		return
	}
	m.audio.SetVolume(min(max(m.audio.GetVolume()+step, 0), 100))
}

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("205")).
	MarginBottom(1)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	changedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	correctStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	wrongStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// View renders the console
func (m Model) View() string {
	if m.quitting {
		return "Ending session...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	st := m.status
	field("Mapping", m.mapping)
	field("Progress", fmt.Sprintf("%d/%d trials", st.Completed, st.Total))
	field("Trial", fmt.Sprintf("#%d block %d (%s)", st.Trial.Index, st.Trial.BlockID, blockName(st.Trial.BlockType)))
	field("Phase", string(st.Phase))

	if st.Phase == session.PhaseTrain {
		train := st.Train
		phase := valueStyle.Render("steady")
		if train.IsChanged {
			phase = changedStyle.Render("changed " + directionName(train.IsFaster))
		}
		b.WriteString(headerStyle.Render("Train: "))
		b.WriteString(phase)
		b.WriteString(valueStyle.Render(fmt.Sprintf("  t=%.1fs  changes=%d", st.TrialTime, train.ChangeCount)))
		b.WriteString("\n")
	}
	field("Delta", fmt.Sprintf("%.1f ms", st.Train.CurrentDeltaMs))
	if st.LastResult != "" {
		field("Last", st.LastResult)
	}
	if m.audio != nil {
		volume := fmt.Sprintf("%d%%", m.audio.GetVolume())
		if m.audio.IsMuted() {
			volume += " (muted)"
		}
		field("Volume", volume)
	}

	if m.feedback != nil {
		b.WriteString("\n")
		if *m.feedback {
			b.WriteString(correctStyle.Render("  CORRECT  "))
		} else {
			b.WriteString(wrongStyle.Render("  INCORRECT  "))
		}
		b.WriteString("\n")
	}

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderStaircase())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderStaircase() string {
	if len(m.stairs) == 0 {
		return valueStyle.Render("No staircase data yet") + "\n"
	}

	labels := make([]string, 0, len(m.stairs))
	for label := range m.stairs {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var b strings.Builder
	for _, label := range labels {
		s := m.stairs[label]
		pc := 0.0
		if s.Trials > 0 {
			pc = 100 * float64(s.Correct) / float64(s.Trials)
		}
		b.WriteString(fmt.Sprintf("%-8s delta %6.1fms step %4.1fms rev %2d  %d/%d (%.0f%%)\n",
			label, s.DeltaMs, s.StepMs, s.Reversals, s.Correct, s.Trials, pc))
	}
	return b.String()
}

func (m Model) renderHelp() string {
	help := "←/a:Left  →/l:Right  ↑/↓:Volume  m:Mute  d:Staircase  q:Quit"
	if m.status.Phase == session.PhaseWaiting {
		help = "space:Start trial  " + help
	}
	return helpStyle.Render(help)
}

func blockName(blockType int) string {
	switch blockType {
	case session.BlockStationary:
		return "stationary"
	case session.BlockSlowWalk:
		return "slow walk"
	case session.BlockNatural:
		return "natural walk"
	default:
		return "unknown"
	}
}

func directionName(faster bool) string {
	if faster {
		return "faster"
	}
	return "slower"
}
