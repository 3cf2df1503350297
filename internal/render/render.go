// Package render drives the panel refresh loop at a fixed frame rate.
package render

import (
	"image"
	"log"
	"sync"
	"time"

	"github.com/kartoza/kartoza-camera-rig/internal/input"
)

// FrameRate is the panel refresh rate in frames per second.
const FrameRate = 15

// Period is the target duration of one loop turn.
const Period = time.Second / FrameRate

// Scheduler runs the fixed-period loop that polls inputs, advances the
// recorder and repaints the panel. A turn that overruns its period is
// followed immediately by the next one; missed ticks are never made up,
// the loop just runs late and recovers.
type Scheduler struct {
	// Period overrides the default turn length when non-zero.
	Period time.Duration

	// Events returns the input events accumulated since the last turn.
	Events func() []input.Event

	// Handle dispatches one input event.
	Handle func(input.Event)

	// Poll advances background work, typically the recorder arbiter.
	Poll func()

	// Frame returns the image to paint this turn.
	Frame func() *image.RGBA

	// Show pushes the painted frame to the display.
	Show func(*image.RGBA) error

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Run executes the loop until Stop is called. It blocks the calling
// goroutine.
func (s *Scheduler) Run() {
	period := s.Period
	if period <= 0 {
		period = Period
	}
	s.mu.Lock()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		start := time.Now()
		s.turn()

		sleep := period - time.Since(start)
		if sleep <= 0 {
			continue
		}
		select {
		case <-stop:
			return
		case <-time.After(sleep):
		}
	}
}

// Stop ends the loop after the current turn and waits for it to exit. Stop
// before Run is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done
}

func (s *Scheduler) turn() {
	if s.Events != nil && s.Handle != nil {
		for _, ev := range s.Events() {
			s.Handle(ev)
		}
	}
	if s.Poll != nil {
		s.Poll()
	}
	if s.Frame == nil || s.Show == nil {
		return
	}
	if err := s.Show(s.Frame()); err != nil {
		log.Printf("[PANEL] display: %v", err)
	}
}
