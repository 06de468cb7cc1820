package event

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBus(t *testing.T) {
	Convey("Given a bus with a small buffer", t, func() {
		bus := NewBus(2)

		Convey("Publishing never blocks and drops when full", func() {
			So(bus.Publish(Event{Kind: FramePlayed, Frame: 1}), ShouldBeTrue)
			So(bus.Publish(Event{Kind: FramePlayed, Frame: 2}), ShouldBeTrue)
			So(bus.Publish(Event{Kind: FramePlayed, Frame: 3}), ShouldBeFalse)
			So(bus.Dropped(), ShouldEqual, 1)

			e := <-bus.Events()
			So(e.Frame, ShouldEqual, 1)
		})

		Convey("Events published after close are discarded", func() {
			bus.Publish(Event{Kind: EpisodeEnd})
			bus.Close()
			So(bus.Publish(Event{Kind: EpisodeEnd}), ShouldBeFalse)

			var received []Event
			for e := range bus.Events() {
				received = append(received, e)
			}
			So(len(received), ShouldEqual, 1)

			// Closing twice is harmless
			So(func() { bus.Close() }, ShouldNotPanic)
		})
	})

	Convey("A nil bus discards events", t, func() {
		var bus *Bus
		So(bus.Publish(Event{}), ShouldBeFalse)
		So(bus.Dropped(), ShouldEqual, 0)
		So(func() { bus.Close() }, ShouldNotPanic)
	})
}

func TestSubscribe(t *testing.T) {
	Convey("Given a bus with three subscribers", t, func() {
		done := make(chan struct{})
		defer close(done)

		bus := NewBus(8)
		subs := Subscribe(done, bus.Events(), 3)
		So(len(subs), ShouldEqual, 3)

		Convey("Every subscriber receives every event in order", func() {
			for i := 1; i <= 3; i++ {
				bus.Publish(Event{Kind: EpisodeEnd, Episode: i})
			}

			results := make(chan []int, len(subs))
			for _, sub := range subs {
				go func(sub <-chan Event) {
					var episodes []int
					for len(episodes) < 3 {
						select {
						case e := <-sub:
							episodes = append(episodes, e.Episode)
						case <-time.After(2 * time.Second):
							results <- episodes
							return
						}
					}
					results <- episodes
				}(sub)
			}

			for range subs {
				So(<-results, ShouldResemble, []int{1, 2, 3})
			}
		})
	})
}

func TestFilter(t *testing.T) {
	Convey("Filter passes only the requested kinds", t, func() {
		done := make(chan struct{})
		defer close(done)

		in := make(chan Event, 4)
		in <- Event{Kind: FramePlayed}
		in <- Event{Kind: EpisodeEnd, Episode: 1}
		in <- Event{Kind: TargetSynced}
		in <- Event{Kind: Terminated, Reason: "Threshold"}
		close(in)

		var kinds []Kind
		for e := range Filter(done, in, EpisodeEnd, Terminated) {
			kinds = append(kinds, e.Kind)
		}
		So(kinds, ShouldResemble, []Kind{EpisodeEnd, Terminated})
	})
}

func TestEventString(t *testing.T) {
	Convey("Events describe themselves by kind", t, func() {
		e := Event{Kind: Terminated, Frame: 10, Reason: "MaxFrames"}
		So(e.String(), ShouldContainSubstring, "MaxFrames")
		So(Kind(99).String(), ShouldEqual, "Kind(99)")
		So(Done.String(), ShouldEqual, "Terminated")
	})
}
