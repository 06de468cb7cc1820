package terminal

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/samuelfneumann/gamerl/experiment/event"
)

// recentEvents is the number of log lines kept on screen
const recentEvents = 10

// refresh is the interval between redraws of the elapsed time
const refresh = 100 * time.Millisecond

type tickMsg time.Time

// closedMsg reports that the event stream was closed
type closedMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(events <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return e
	}
}

// Model is the bubbletea model of a training session. It quits when
// the event stream closes or when q is pressed.
type Model struct {
	events <-chan event.Event
	start  time.Time
	now    time.Time

	phase     event.Phase
	frame     int
	episode   int
	iteration int

	epsilon       float64
	averageReward float64
	averageFruits float64
	averageSteps  float64
	fps           float64
	loss          float64

	syncs       int
	checkpoints int
	board       string
	scores      string
	recent      []string
	reason      string
}

// New returns a Model which reads events
func New(events <-chan event.Event) Model {
	now := time.Now()
	return Model{events: events, start: now, now: now}
}

// Init implements the tea.Model interface
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tickCmd())
}

// Update implements the tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case closedMsg:
		return m, tea.Quit

	case event.Event:
		m = m.apply(msg)
		return m, waitForEvent(m.events)
	}
	return m, nil
}

// apply updates the Model's view of the session with e
func (m Model) apply(e event.Event) Model {
	m.phase = e.Phase
	if e.Frame > m.frame {
		m.frame = e.Frame
	}

	switch e.Kind {
	case event.FramePlayed:
		m.epsilon = e.Epsilon
		if e.Snapshot != nil {
			m.board = Board(*e.Snapshot)
			m.scores = scores(e.Snapshot.Scores)
		}

	case event.EpisodeEnd:
		m.episode = e.Episode
		m.epsilon = e.Epsilon
		m.averageReward = e.AverageReward
		m.averageFruits = e.AverageFruits
		m.fps = e.FPS
		m.loss = e.Loss
		m = m.log(fmt.Sprintf("Episode %v: reward=%.1f fruits=%v",
			e.Episode, e.Reward, e.Fruits))

	case event.IterationEnd:
		m.iteration = e.Iteration
		m.averageSteps = e.AverageSteps
		m.fps = e.FPS
		m = m.log(fmt.Sprintf("Iteration %v: mean steps=%.1f", e.Iteration,
			e.AverageSteps))

	case event.TargetSynced:
		m.syncs++

	case event.Checkpointed:
		m.checkpoints++
		m = m.log(fmt.Sprintf("Saved to %v", e.Path))

	case event.PhaseChanged:
		m = m.log(fmt.Sprintf("Phase: %v", e.Phase))

	case event.Terminated:
		m.reason = e.Reason
		m = m.log(fmt.Sprintf("Terminated: %v", e.Reason))
	}
	return m
}

func (m Model) log(line string) Model {
	recent := make([]string, 0, recentEvents)
	recent = append(recent, line)
	for i := 0; i < len(m.recent) && len(recent) < recentEvents; i++ {
		recent = append(recent, m.recent[i])
	}
	m.recent = recent
	return m
}

// View implements the tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Phase:          %v\n", m.phase)
	fmt.Fprintf(&b, "Elapsed:        %v\n", m.now.Sub(m.start).Round(time.Second))
	fmt.Fprintf(&b, "Frame:          %d\n", m.frame)
	if m.iteration > 0 {
		fmt.Fprintf(&b, "Iteration:      %d\n", m.iteration)
		fmt.Fprintf(&b, "Mean Steps:     %.1f\n", m.averageSteps)
		fmt.Fprintf(&b, "Steps/Sec:      %.1f\n", m.fps)
	} else {
		fmt.Fprintf(&b, "Episode:        %d\n", m.episode)
		fmt.Fprintf(&b, "Reward (avg):   %.2f\n", m.averageReward)
		fmt.Fprintf(&b, "Fruits (avg):   %.2f\n", m.averageFruits)
		fmt.Fprintf(&b, "Epsilon:        %.3f\n", m.epsilon)
		fmt.Fprintf(&b, "Loss:           %.4f\n", m.loss)
		fmt.Fprintf(&b, "Frames/Sec:     %.1f\n", m.fps)
		fmt.Fprintf(&b, "Target Syncs:   %d\n", m.syncs)
	}
	fmt.Fprintf(&b, "Checkpoints:    %d\n", m.checkpoints)

	if m.board != "" {
		b.WriteString("\n")
		b.WriteString(m.board)
		if m.scores != "" {
			b.WriteString(m.scores + "\n")
		}
	}

	b.WriteString("\nRecent Events:\n")
	for _, line := range m.recent {
		b.WriteString(line + "\n")
	}

	b.WriteString("\nPress q to quit.\n")
	return b.String()
}

// Run runs a full screen Model over events until the stream closes or
// the user quits
func Run(events <-chan event.Event, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	if _, err := tea.NewProgram(New(events), opts...).Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
