package render

import (
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kartoza/kartoza-camera-rig/internal/input"
)

func TestSchedulerRunsAtPeriod(t *testing.T) {
	var turns atomic.Int64
	s := &Scheduler{
		Period: 10 * time.Millisecond,
		Poll:   func() { turns.Add(1) },
	}

	go s.Run()
	time.Sleep(105 * time.Millisecond)
	s.Stop()

	got := turns.Load()
	if got < 8 || got > 12 {
		t.Errorf("expected ~10 turns over 100ms, got %d", got)
	}
}

func TestSchedulerStopsPromptly(t *testing.T) {
	s := &Scheduler{
		Period: time.Hour, // the stop must interrupt the sleep
		Poll:   func() {},
	}
	go s.Run()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the inter-frame sleep")
	}
}

func TestSchedulerNoCatchUp(t *testing.T) {
	// A slow turn must not trigger a burst of make-up turns afterwards.
	var turns atomic.Int64
	s := &Scheduler{
		Period: 10 * time.Millisecond,
		Poll: func() {
			if turns.Add(1) == 1 {
				time.Sleep(50 * time.Millisecond)
			}
		},
	}

	go s.Run()
	time.Sleep(105 * time.Millisecond)
	s.Stop()

	// One 50ms turn eats five periods; with catch-up we would see ~10
	// turns anyway, without it roughly five fewer.
	got := turns.Load()
	if got > 8 {
		t.Errorf("missed ticks were made up: %d turns", got)
	}
}

func TestSchedulerPipelineOrder(t *testing.T) {
	var order []string
	s := &Scheduler{
		Period: time.Millisecond,
		Events: func() []input.Event {
			order = append(order, "events")
			return []input.Event{{Line: input.Key1, Kind: input.Press}}
		},
		Handle: func(input.Event) { order = append(order, "handle") },
		Poll:   func() { order = append(order, "poll") },
		Frame: func() *image.RGBA {
			order = append(order, "frame")
			return image.NewRGBA(image.Rect(0, 0, 1, 1))
		},
		Show: func(*image.RGBA) error {
			order = append(order, "show")
			return nil
		},
	}

	s.turn()

	want := []string{"events", "handle", "poll", "frame", "show"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("turn order: got %v, want %v", order, want)
		}
	}
}

func TestSchedulerStopWithoutRun(t *testing.T) {
	s := &Scheduler{}
	s.Stop() // must not panic
}
