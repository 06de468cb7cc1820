// Package tracker implements Trackers, which track and save data
// published by a training session
package tracker

import (
	"fmt"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/samuelfneumann/gamerl/experiment/event"
)

// Tracker keeps track of session data and saves it after the session
// has finished
type Tracker interface {
	Track(e event.Event)
	Save() error
}

// Run feeds every event received on in to each Tracker until in is
// closed or done is closed, then saves all Trackers. It returns the
// first error encountered while saving.
func Run(done <-chan struct{}, in <-chan event.Event,
	trackers ...Tracker) error {
	for e := range channerics.OrDone(done, in) {
		for _, t := range trackers {
			t.Track(e)
		}
	}

	var firstErr error
	for _, t := range trackers {
		if err := t.Save(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("run: %w", err)
		}
	}
	return firstErr
}
