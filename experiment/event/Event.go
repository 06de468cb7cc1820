// Package event implements the events a training session publishes and
// a non-blocking bus which fans them out to observers
package event

import (
	"fmt"

	"github.com/samuelfneumann/gamerl/agent"
)

// Kind is the kind of an Event
type Kind int

const (
	PhaseChanged Kind = iota
	FramePlayed
	EpisodeEnd
	TargetSynced
	Checkpointed
	GameEnd
	IterationEnd
	Terminated
)

func (k Kind) String() string {
	switch k {
	case PhaseChanged:
		return "PhaseChanged"
	case FramePlayed:
		return "FramePlayed"
	case EpisodeEnd:
		return "EpisodeEnd"
	case TargetSynced:
		return "TargetSynced"
	case Checkpointed:
		return "Checkpointed"
	case GameEnd:
		return "GameEnd"
	case IterationEnd:
		return "IterationEnd"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Phase is the phase of a training session
type Phase int

const (
	Warmup Phase = iota
	Training
	Done
)

func (p Phase) String() string {
	switch p {
	case Warmup:
		return "Warmup"
	case Training:
		return "Training"
	case Done:
		return "Terminated"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Event is a notification published by a training session. Only the
// fields relevant to its Kind are set.
type Event struct {
	Kind  Kind  `json:"kind"`
	Phase Phase `json:"phase"`

	Frame     int `json:"frame"`
	Episode   int `json:"episode,omitempty"`
	Iteration int `json:"iteration,omitempty"`
	Game      int `json:"game,omitempty"`

	Reward float64 `json:"reward,omitempty"`
	Fruits int     `json:"fruits,omitempty"`
	Steps  int     `json:"steps,omitempty"`

	AverageReward float64 `json:"average_reward,omitempty"`
	AverageFruits float64 `json:"average_fruits,omitempty"`
	AverageSteps  float64 `json:"average_steps,omitempty"`

	Epsilon float64 `json:"epsilon,omitempty"`
	FPS     float64 `json:"fps,omitempty"`
	Loss    float64 `json:"loss,omitempty"`

	// Path is the directory a model was saved to
	Path string `json:"path,omitempty"`

	// Reason is why the session terminated
	Reason string `json:"reason,omitempty"`

	Snapshot *agent.Snapshot `json:"snapshot,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case PhaseChanged:
		return fmt.Sprintf("%v | Frame %v | Phase: %v", e.Kind, e.Frame,
			e.Phase)
	case EpisodeEnd:
		return fmt.Sprintf("%v | Frame %v | Episode %v | Reward: %.2f | "+
			"Fruits: %v | Avg Reward: %.2f | Avg Fruits: %.2f", e.Kind,
			e.Frame, e.Episode, e.Reward, e.Fruits, e.AverageReward,
			e.AverageFruits)
	case IterationEnd:
		return fmt.Sprintf("%v | Iteration %v | Mean Steps: %.2f | "+
			"Steps/s: %.2f", e.Kind, e.Iteration, e.AverageSteps, e.FPS)
	case Terminated:
		return fmt.Sprintf("%v | Frame %v | Reason: %v", e.Kind, e.Frame,
			e.Reason)
	default:
		return fmt.Sprintf("%v | Frame %v", e.Kind, e.Frame)
	}
}
