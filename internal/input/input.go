// Package input turns raw panel line levels into debounced press and
// key-repeat events. The source is synchronous: the render loop polls it
// once per tick, there is no internal goroutine.
package input

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Line identifies one physical input on the control panel.
type Line int

const (
	Key1 Line = iota // record / stop, works on every page
	Key2             // toggle AUTO for the page's primary setting
	Key3             // HUD toggle on the live page, secondary elsewhere
	JoyUp
	JoyDown
	JoyLeft
	JoyRight
	JoyPress
)

// Lines is the fixed declaration order. Event output follows this order, so
// simultaneous transitions are reported deterministically.
var Lines = []Line{Key1, Key2, Key3, JoyUp, JoyDown, JoyLeft, JoyRight, JoyPress}

func (l Line) String() string {
	switch l {
	case Key1:
		return "KEY1"
	case Key2:
		return "KEY2"
	case Key3:
		return "KEY3"
	case JoyUp:
		return "JOY_UP"
	case JoyDown:
		return "JOY_DOWN"
	case JoyLeft:
		return "JOY_LEFT"
	case JoyRight:
		return "JOY_RIGHT"
	case JoyPress:
		return "JOY_PRESS"
	}
	return fmt.Sprintf("LINE(%d)", int(l))
}

// Kind is the event type emitted for a line.
type Kind int

const (
	Press Kind = iota
	Repeat
)

func (k Kind) String() string {
	if k == Repeat {
		return "repeat"
	}
	return "press"
}

// Event is one accepted input transition.
type Event struct {
	Line Line
	Kind Kind
}

// Timing parameters for debounce and key repeat.
const (
	DebounceWindow = 70 * time.Millisecond
	HoldDelay      = 400 * time.Millisecond
	RepeatInterval = 110 * time.Millisecond
)

// LineSampler reports the instantaneous level of each line. Pressed is
// active-low on the panel hardware; samplers return true for "pressed".
type LineSampler interface {
	Sample(l Line) bool
}

// lineState tracks per-line debounce bookkeeping.
type lineState struct {
	pressed    bool
	pressTime  time.Time // last accepted press
	repeatTime time.Time // last emitted repeat
	eventTime  time.Time // last accepted event, debounce reference
}

// Source generates debounced events from a sampler.
type Source struct {
	sampler LineSampler
	lines   map[Line]*lineState
	repeat  map[Line]bool
	now     func() time.Time
}

// NewSource creates an event source over sampler. Only the joystick up/down
// lines participate in key repeat.
func NewSource(sampler LineSampler) *Source {
	s := &Source{
		sampler: sampler,
		lines:   make(map[Line]*lineState, len(Lines)),
		repeat:  map[Line]bool{JoyUp: true, JoyDown: true},
		now:     time.Now,
	}
	for _, l := range Lines {
		s.lines[l] = &lineState{}
	}
	return s
}

// Poll samples every line and returns the accepted events for this tick, in
// line declaration order.
//
// A release→press edge is accepted only when the debounce window has passed
// since the line's last accepted event, so a bouncing contact yields exactly
// one press per window. Repeat-enabled lines held past the hold delay emit a
// repeat every repeat interval. Releases and held non-repeat lines emit
// nothing.
func (s *Source) Poll() []Event {
	now := s.now()
	var events []Event

	for _, l := range Lines {
		st := s.lines[l]
		pressed := s.sampler.Sample(l)

		switch {
		case pressed && !st.pressed:
			if now.Sub(st.eventTime) > DebounceWindow {
				events = append(events, Event{Line: l, Kind: Press})
				st.pressTime = now
				st.repeatTime = now
				st.eventTime = now
			}
		case pressed && st.pressed && s.repeat[l]:
			if now.Sub(st.pressTime) > HoldDelay && now.Sub(st.repeatTime) > RepeatInterval {
				events = append(events, Event{Line: l, Kind: Repeat})
				st.repeatTime = now
			}
		}
		st.pressed = pressed
	}
	return events
}

// GPIO pin assignment (BCM numbering) for the stock panel wiring.
var DefaultPins = map[Line]int{
	Key1:     21,
	Key2:     20,
	Key3:     16,
	JoyUp:    6,
	JoyDown:  19,
	JoyLeft:  5,
	JoyRight: 26,
	JoyPress: 13,
}

// SysfsSampler reads line levels from the kernel's sysfs GPIO interface.
// Lines are wired active-low with pull-ups, so a value of 0 means pressed.
type SysfsSampler struct {
	pins map[Line]int
}

// NewSysfsSampler creates a sampler over the given pin map; nil uses the
// stock wiring.
func NewSysfsSampler(pins map[Line]int) *SysfsSampler {
	if pins == nil {
		pins = DefaultPins
	}
	return &SysfsSampler{pins: pins}
}

// Export asks the kernel to expose every pin and sets it as an input.
// Pins that are already exported are fine; anything else fails loudly so a
// miswired panel is caught at startup.
func (s *SysfsSampler) Export() error {
	for line, pin := range s.pins {
		num := []byte(strconv.Itoa(pin))
		if err := os.WriteFile("/sys/class/gpio/export", num, 0o200); err != nil && !os.IsExist(err) {
			if _, serr := os.Stat(fmt.Sprintf("/sys/class/gpio/gpio%d", pin)); serr != nil {
				return fmt.Errorf("export gpio %d (%s): %w", pin, line, err)
			}
		}
		dir := fmt.Sprintf("/sys/class/gpio/gpio%d/direction", pin)
		if err := os.WriteFile(dir, []byte("in"), 0o200); err != nil {
			return fmt.Errorf("set gpio %d (%s) direction: %w", pin, line, err)
		}
	}
	return nil
}

// Sample reads one line. Any read error reads as released, so a missing or
// unexported pin never wedges the event loop.
func (s *SysfsSampler) Sample(l Line) bool {
	pin, ok := s.pins[l]
	if !ok {
		return false
	}
	data, err := os.ReadFile(fmt.Sprintf("/sys/class/gpio/gpio%d/value", pin))
	if err != nil || len(data) == 0 {
		return false
	}
	v, err := strconv.Atoi(string(data[:1]))
	if err != nil {
		return false
	}
	return v == 0
}
