// Package panel maps physical HAT input events onto capture state changes.
// It owns the page model and the per-page meaning of each button; the
// record button is the one control that works the same everywhere.
package panel

import (
	"fmt"
	"sync"
	"time"

	"github.com/kartoza/kartoza-camera-rig/internal/input"
	"github.com/kartoza/kartoza-camera-rig/internal/models"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// Page identifies one panel screen.
type Page int

const (
	PageLive Page = iota
	PageStatus
	PageExposure
	PageWhiteBal
	PageFocus
	PageDisplay
	PageAudio
	PageFormat
	PageStorage
	pageCount
)

var pageNames = [...]string{
	"LIVE",
	"STATUS",
	"EXPOSURE",
	"WHITE BAL",
	"FOCUS",
	"DISPLAY",
	"AUDIO",
	"FORMAT",
	"STORAGE",
}

func (p Page) String() string {
	if p < 0 || int(p) >= len(pageNames) {
		return "?"
	}
	return pageNames[p]
}

// NumPages is the number of panel screens.
const NumPages = int(pageCount)

// WBPresets are the white balance quick temperatures cycled by KEY3 on the
// white balance page.
var WBPresets = []int{3200, 4300, 5600, 6500, 7500}

// FlashDuration is how long a flash message stays on screen.
const FlashDuration = 1200 * time.Millisecond

// Panel is the event dispatcher. apply, when set, pushes the current
// exposure/wb/focus values to the camera after a change; the panel itself
// never talks to the device.
type Panel struct {
	st    *state.State
	apply func()

	now func() time.Time

	mu           sync.Mutex
	page         Page
	gainSelected bool // exposure page: joystick adjusts gain, not exposure
	wbPreset     int
	flashMsg     string
	flashUntil   time.Time
}

func New(st *state.State, apply func()) *Panel {
	return &Panel{st: st, apply: apply, now: time.Now}
}

// Page returns the current screen.
func (p *Panel) Page() Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// GainSelected reports whether the exposure page joystick is bound to gain.
func (p *Panel) GainSelected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gainSelected
}

// Flash returns the active flash message, or "" when none is showing.
func (p *Panel) Flash() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.now().After(p.flashUntil) {
		return ""
	}
	return p.flashMsg
}

func (p *Panel) flash(format string, args ...any) {
	p.mu.Lock()
	p.flashMsg = fmt.Sprintf(format, args...)
	p.flashUntil = p.now().Add(FlashDuration)
	p.mu.Unlock()
}

func (p *Panel) applyControls() {
	if p.apply != nil {
		p.apply()
	}
}

// Handle dispatches one input event. Unhandled line/page combinations are
// deliberately silent.
func (p *Panel) Handle(ev input.Event) {
	switch ev.Line {
	case input.Key1:
		if ev.Kind == input.Press {
			p.st.RequestRecordToggle()
			if p.st.Recording() {
				p.flash("STOP")
			} else {
				p.flash("REC")
			}
		}
	case input.JoyLeft:
		if ev.Kind == input.Press {
			p.turnPage(-1)
		}
	case input.JoyRight:
		if ev.Kind == input.Press {
			p.turnPage(+1)
		}
	case input.JoyUp:
		p.adjust(+1)
	case input.JoyDown:
		p.adjust(-1)
	case input.Key2:
		if ev.Kind == input.Press {
			p.primary()
		}
	case input.Key3:
		if ev.Kind == input.Press {
			p.secondary()
		}
	case input.JoyPress:
		if ev.Kind == input.Press {
			p.press()
		}
	}
}

func (p *Panel) turnPage(step int) {
	p.mu.Lock()
	p.page = Page((int(p.page) + step + NumPages) % NumPages)
	page := p.page
	p.mu.Unlock()
	p.flash("%s", page)
}

// adjust handles joystick up/down, the only lines that auto-repeat.
func (p *Panel) adjust(dir int) {
	switch p.Page() {
	case PageLive, PageExposure:
		if p.Page() == PageExposure && p.GainSelected() {
			p.flash("GAIN %d", p.st.AdjustGain(dir*10))
			p.applyControls()
			return
		}
		step := 50
		if p.st.Exposure() >= 2000 {
			step = 200
		}
		p.flash("EXP %d", p.st.AdjustExposure(dir*step))
		p.applyControls()
	case PageWhiteBal:
		p.flash("WB %dK", p.st.AdjustWBTemp(dir*100))
		p.applyControls()
	case PageFocus:
		p.st.SetAutoFocus(false)
		p.flash("FOCUS %d%%", p.focusAfter(dir*10))
		p.applyControls()
	case PageAudio:
		p.flash("MIC %+ddB", p.st.AdjustMicGain(dir*3))
	case PageFormat:
		p.cycleFormat(dir)
	}
}

func (p *Panel) focusAfter(delta int) int {
	p.st.AdjustFocus(delta)
	return p.st.FocusPercent()
}

// primary is KEY2: the page's auto/enable toggle.
func (p *Panel) primary() {
	switch p.Page() {
	case PageLive:
		if p.st.ToggleFocusPeaking() {
			p.flash("PEAK ON")
		} else {
			p.flash("PEAK OFF")
		}
	case PageExposure:
		if p.st.ToggleAutoExp() {
			p.flash("AE ON")
		} else {
			p.flash("AE OFF")
		}
		p.applyControls()
	case PageWhiteBal:
		if p.st.ToggleAutoWB() {
			p.flash("AWB ON")
		} else {
			p.flash("AWB OFF")
		}
		p.applyControls()
	case PageFocus:
		if p.st.ToggleAutoFocus() {
			p.flash("AF ON")
		} else {
			p.flash("AF OFF")
		}
		p.applyControls()
	case PageDisplay:
		if p.st.ToggleGuides() {
			p.flash("GUIDES ON")
		} else {
			p.flash("GUIDES OFF")
		}
	case PageAudio:
		if p.st.ToggleMute() {
			p.flash("MUTED")
		} else {
			p.flash("LIVE MIC")
		}
	}
}

// secondary is KEY3: the page's second action.
func (p *Panel) secondary() {
	switch p.Page() {
	case PageLive:
		p.cycleFormat(+1)
	case PageStatus, PageStorage:
		p.st.ResetClipNumber()
		p.flash("CLIP #%04d", p.st.ClipNumber())
	case PageWhiteBal:
		p.mu.Lock()
		p.wbPreset = (p.wbPreset + 1) % len(WBPresets)
		k := WBPresets[p.wbPreset]
		p.mu.Unlock()
		p.st.SetAutoWB(false)
		p.st.SetWBTemp(k)
		p.flash("WB %dK", k)
		p.applyControls()
	case PageFocus:
		if p.st.ToggleFocusPeaking() {
			p.flash("PEAK ON")
		} else {
			p.flash("PEAK OFF")
		}
	case PageDisplay:
		if p.st.ToggleHistogram() {
			p.flash("HIST ON")
		} else {
			p.flash("HIST OFF")
		}
	case PageFormat:
		p.cycleResolution()
	}
}

// press is the joystick center click.
func (p *Panel) press() {
	switch p.Page() {
	case PageLive, PageAudio:
		if p.st.ToggleMute() {
			p.flash("MUTED")
		} else {
			p.flash("LIVE MIC")
		}
	case PageExposure:
		p.mu.Lock()
		p.gainSelected = !p.gainSelected
		sel := p.gainSelected
		p.mu.Unlock()
		if sel {
			p.flash("ADJ: GAIN")
		} else {
			p.flash("ADJ: EXP")
		}
	case PageWhiteBal:
		p.st.SetAutoWB(false)
		p.flash("WB LOCK %dK", p.st.WBTemp())
		p.applyControls()
	case PageFocus:
		p.st.SetAutoFocus(false)
		p.flash("AF LOCK %d%%", p.st.FocusPercent())
		p.applyControls()
	case PageDisplay:
		if p.st.ToggleFocusPeaking() {
			p.flash("PEAK ON")
		} else {
			p.flash("PEAK OFF")
		}
	case PageFormat:
		p.cycleFormat(+1)
	}
}

// Format and resolution are encoder inputs; changing them mid-clip would
// desync the file name and the stream, so both are locked while recording.
func (p *Panel) cycleFormat(step int) {
	if p.st.Recording() {
		p.flash("REC LOCK")
		return
	}
	f := p.st.CycleFormat(step)
	if f.CPUWarn {
		p.flash("%s !CPU", f.Label)
	} else {
		p.flash("%s", f.Label)
	}
}

func (p *Panel) cycleResolution() {
	if p.st.Recording() {
		p.flash("REC LOCK")
		return
	}
	cur := p.st.Resolution()
	next := models.Resolutions[0]
	for i, r := range models.Resolutions {
		if r == cur {
			next = models.Resolutions[(i+1)%len(models.Resolutions)]
			break
		}
	}
	p.st.SetResolution(next)
	p.flash("%s", models.ResolutionLabel(next))
}
