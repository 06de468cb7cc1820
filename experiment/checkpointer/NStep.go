package checkpointer

import "fmt"

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	object   Saver

	// filename returns the directory to save the object in.
	//
	// If each checkpoint should be saved in a separate directory with
	// an incremented number as a suffix (e.g. dqn-000001, dqn-000002,
	// ...), then use FilenameEnumerator. If the name does not matter
	// but checkpoints must not overwrite each other, use FileTimer.
	// To overwrite a single checkpoint, return a constant.
	filename func() string
}

// NewNStep returns a Checkpointer that saves object every n steps
func NewNStep(n int, object Saver,
	filename func() string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: interval must be positive "+
			"\n\twant(>0) \n\thave(%v)", n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the tracked object if step is a positive multiple of
// the interval. The score is ignored.
func (n *nStep) Checkpoint(step int, _ float64) (string, error) {
	if step <= 0 || step%n.interval != 0 {
		return "", nil
	}

	path := n.filename()
	if err := n.object.Save(path); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	return path, nil
}
