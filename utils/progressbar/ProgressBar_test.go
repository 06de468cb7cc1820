package progressbar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/samuelfneumann/gamerl/experiment/event"
)

func TestRender(t *testing.T) {
	tests := []struct {
		progress int
		want     string
	}{
		{0, "|          | [0.00% | elapsed: 0s]"},
		{2, "|█████     | [50.00% | elapsed: 0s]"},
		{3, "|███████   | [75.00% | elapsed: 0s]"},
		{9, "|██████████| [100.00% | elapsed: 0s]"},
	}

	for _, test := range tests {
		p := NewManualProgressBar(&bytes.Buffer{}, 10, 4)
		p.Set(test.progress)
		if have := p.render(0); have != test.want {
			t.Errorf("render(%v): \n\twant(%v) \n\thave(%v)", test.progress,
				test.want, have)
		}
	}

	// Partially filled cells are left empty
	p := NewManualProgressBar(&bytes.Buffer{}, 10, 3)
	p.Increment()
	if want := "|███       |"; !strings.HasPrefix(p.render(0), want) {
		t.Errorf("render: \n\twant(%v...) \n\thave(%v)", want, p.render(0))
	}
	if n := strings.Count(p.render(0), "█"); n != 3 {
		t.Errorf("render: filled cells \n\twant(3) \n\thave(%v)", n)
	}

	p.SetSuffix("done")
	have := p.render(time.Second)
	if !strings.HasSuffix(have, "elapsed: 1s] done") {
		t.Errorf("render: suffix \n\twant(... done) \n\thave(%v)", have)
	}
}

func TestFrameProgressBar(t *testing.T) {
	var out bytes.Buffer
	p := NewFrameProgressBar(&out, 10, 100, time.Hour)

	in := make(chan event.Event, 4)
	in <- event.Event{Kind: event.EpisodeEnd, Frame: 50, AverageReward: 2}
	in <- event.Event{Kind: event.TargetSynced, Frame: 100}
	in <- event.Event{Kind: event.Terminated, Reason: "MaxFrames"}
	close(in)

	p.Run(make(chan struct{}), in)

	have := out.String()
	if !strings.Contains(have, "[100.00%") {
		t.Errorf("run: expected a full bar \n\thave(%v)", have)
	}
	if !strings.Contains(have, "terminated: MaxFrames") {
		t.Errorf("run: expected termination reason \n\thave(%v)", have)
	}
}

func TestIterationProgressBar(t *testing.T) {
	var out bytes.Buffer
	p := NewIterationProgressBar(&out, 10, 4, time.Hour)

	in := make(chan event.Event, 4)
	in <- event.Event{Kind: event.GameEnd, Iteration: 2, Game: 1}
	in <- event.Event{Kind: event.IterationEnd, Iteration: 1, AverageSteps: 12}
	close(in)

	p.Run(make(chan struct{}), in)

	if have := p.bar.Progress(); have != 1 {
		t.Errorf("run: progress \n\twant(1) \n\thave(%v)", have)
	}
	if !strings.Contains(out.String(), "mean steps: 12.0") {
		t.Errorf("run: expected mean steps \n\thave(%v)", out.String())
	}
}
