// Package state holds the capture state shared by every worker in the rig.
//
// All access goes through synchronized accessors. Fields that must change
// together (recording flag, encoder reference, clip counter) are only ever
// updated inside one critical section.
package state

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/kartoza/kartoza-camera-rig/internal/config"
	"github.com/kartoza/kartoza-camera-rig/internal/models"
)

// Exposure, gain, white balance and focus limits as reported by typical UVC
// cameras. FocusMax is refined at runtime from the camera's control range.
const (
	ExposureMin = 50
	ExposureMax = 10000
	GainMin     = 0
	GainMax     = 500
	WBTempMin   = 2000
	WBTempMax   = 10000
	FocusMin    = 0
	FocusMax    = 255

	MicGainMinDB = -20
	MicGainMaxDB = 20
)

// EncoderRef identifies a live encoder process attached to the rig. The
// concrete value is owned by the recorder; state only tracks its presence.
type EncoderRef interface {
	PID() int
}

// Snapshot is a consistent copy of the capture state for rendering and
// persistence. Readers get a snapshot instead of holding the lock across a
// draw.
type Snapshot struct {
	Device     string
	Resolution string
	FPS        int

	Exposure  int
	Gain      int
	WBTemp    int
	AutoExp   bool
	AutoWB    bool
	AutoFocus bool
	Focus     int
	FocusMax  int

	FocusPeaking  bool
	ShowGuides    bool
	ShowHistogram bool

	FormatIndex int
	Recording   bool
	RecStart    time.Time
	ClipNumber  int
	OutputDir   string

	AudioDevice  string
	AudioEnabled bool
	AudioMuted   bool
	MicGainDB    int
	AudioLevels  [2]float64
	AudioPeaks   [2]float64
}

// State is the shared mutable capture state.
type State struct {
	mu sync.Mutex

	device     string
	resolution string
	fps        int

	exposure  int
	gain      int
	wbTemp    int
	autoExp   bool
	autoWB    bool
	autoFocus bool
	focus     int
	focusMax  int

	focusPeaking  bool
	showGuides    bool
	showHistogram bool

	formatIndex int
	recording   bool
	encoder     EncoderRef
	recStart    time.Time
	clipNumber  int
	outputDir   string

	audioDevice  string
	audioEnabled bool
	audioMuted   bool
	micGainDB    int
	audioLevels  [2]float64
	audioPeaks   [2]float64

	// recordIntent carries the one-shot record toggle request from the
	// panel to the loop that owns the camera device. Capacity one: a burst
	// of presses collapses into a single pending intent.
	recordIntent chan struct{}
}

// New creates the capture state with rig defaults applied.
func New() *State {
	return &State{
		device:       config.DefaultDevice,
		resolution:   config.DefaultResolution,
		fps:          config.DefaultFPS,
		exposure:     500,
		gain:         100,
		wbTemp:       5600,
		autoFocus:    true,
		focus:        128,
		focusMax:     FocusMax,
		showGuides:   true,
		formatIndex:  models.DefaultFormatIndex,
		clipNumber:   1,
		outputDir:    config.DefaultOutputDir(),
		audioEnabled: true,
		recordIntent: make(chan struct{}, 1),
	}
}

// ApplySettings populates the state from persisted settings.
func (s *State) ApplySettings(c config.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposure = clamp(c.Exposure, ExposureMin, ExposureMax)
	s.gain = clamp(c.Gain, GainMin, GainMax)
	s.wbTemp = clamp(c.WBTemp, WBTempMin, WBTempMax)
	if c.FPS > 0 {
		s.fps = c.FPS
	}
	s.formatIndex = models.ClampFormatIndex(c.FormatIndex)
	s.focus = clamp(c.Focus, FocusMin, s.focusMax)
	s.autoFocus = c.AutoFocus
	s.micGainDB = clamp(c.MicGainDB, MicGainMinDB, MicGainMaxDB)
}

// Settings returns the persistable subset of the state.
func (s *State) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return config.Settings{
		Exposure:    s.exposure,
		Gain:        s.gain,
		WBTemp:      s.wbTemp,
		FPS:         s.fps,
		FormatIndex: s.formatIndex,
		Focus:       s.focus,
		AutoFocus:   s.autoFocus,
		MicGainDB:   s.micGainDB,
	}
}

// Snapshot returns a consistent copy of the whole state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Device:        s.device,
		Resolution:    s.resolution,
		FPS:           s.fps,
		Exposure:      s.exposure,
		Gain:          s.gain,
		WBTemp:        s.wbTemp,
		AutoExp:       s.autoExp,
		AutoWB:        s.autoWB,
		AutoFocus:     s.autoFocus,
		Focus:         s.focus,
		FocusMax:      s.focusMax,
		FocusPeaking:  s.focusPeaking,
		ShowGuides:    s.showGuides,
		ShowHistogram: s.showHistogram,
		FormatIndex:   s.formatIndex,
		Recording:     s.recording,
		RecStart:      s.recStart,
		ClipNumber:    s.clipNumber,
		OutputDir:     s.outputDir,
		AudioDevice:   s.audioDevice,
		AudioEnabled:  s.audioEnabled,
		AudioMuted:    s.audioMuted,
		MicGainDB:     s.micGainDB,
		AudioLevels:   s.audioLevels,
		AudioPeaks:    s.audioPeaks,
	}
}

// ── Device & capture geometry ────────────────────────────────────────────

func (s *State) Device() string { s.mu.Lock(); defer s.mu.Unlock(); return s.device }

func (s *State) SetDevice(dev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dev != "" {
		s.device = dev
	}
}

func (s *State) Resolution() string { s.mu.Lock(); defer s.mu.Unlock(); return s.resolution }

func (s *State) SetResolution(res string) { s.mu.Lock(); defer s.mu.Unlock(); s.resolution = res }

func (s *State) FPS() int { s.mu.Lock(); defer s.mu.Unlock(); return s.fps }

func (s *State) SetFPS(fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fps > 0 {
		s.fps = fps
	}
}

func (s *State) OutputDir() string { s.mu.Lock(); defer s.mu.Unlock(); return s.outputDir }

func (s *State) SetOutputDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir != "" {
		s.outputDir = dir
	}
}

// ── Exposure / gain / white balance / focus ──────────────────────────────

func (s *State) AdjustExposure(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposure = clamp(s.exposure+delta, ExposureMin, ExposureMax)
	return s.exposure
}

func (s *State) Exposure() int { s.mu.Lock(); defer s.mu.Unlock(); return s.exposure }

func (s *State) AdjustGain(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = clamp(s.gain+delta, GainMin, GainMax)
	return s.gain
}

func (s *State) Gain() int { s.mu.Lock(); defer s.mu.Unlock(); return s.gain }

func (s *State) AdjustWBTemp(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wbTemp = clamp(s.wbTemp+delta, WBTempMin, WBTempMax)
	return s.wbTemp
}

func (s *State) WBTemp() int { s.mu.Lock(); defer s.mu.Unlock(); return s.wbTemp }

func (s *State) SetWBTemp(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wbTemp = clamp(k, WBTempMin, WBTempMax)
}

func (s *State) ToggleAutoExp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoExp = !s.autoExp
	return s.autoExp
}

func (s *State) AutoExp() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.autoExp }

func (s *State) ToggleAutoWB() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoWB = !s.autoWB
	return s.autoWB
}

func (s *State) SetAutoWB(on bool) { s.mu.Lock(); defer s.mu.Unlock(); s.autoWB = on }

func (s *State) AutoWB() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.autoWB }

func (s *State) ToggleAutoFocus() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoFocus = !s.autoFocus
	return s.autoFocus
}

func (s *State) SetAutoFocus(on bool) { s.mu.Lock(); defer s.mu.Unlock(); s.autoFocus = on }

func (s *State) AutoFocus() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.autoFocus }

func (s *State) AdjustFocus(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = clamp(s.focus+delta, FocusMin, s.focusMax)
	return s.focus
}

func (s *State) Focus() int { s.mu.Lock(); defer s.mu.Unlock(); return s.focus }

func (s *State) SetFocus(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = clamp(v, FocusMin, s.focusMax)
}

// SetFocusRange records the camera-reported focus range and clamps the
// current position into it.
func (s *State) SetFocusRange(min, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max > 0 {
		s.focusMax = max
	}
	s.focus = clamp(s.focus, min, s.focusMax)
}

func (s *State) ToggleFocusPeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusPeaking = !s.focusPeaking
	return s.focusPeaking
}

func (s *State) ToggleGuides() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showGuides = !s.showGuides
	return s.showGuides
}

func (s *State) ToggleHistogram() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showHistogram = !s.showHistogram
	return s.showHistogram
}

// ── Output format ────────────────────────────────────────────────────────

func (s *State) FormatIndex() int { s.mu.Lock(); defer s.mu.Unlock(); return s.formatIndex }

// CycleFormat advances the format index by step (may be negative), wrapping.
func (s *State) CycleFormat(step int) models.OutputFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(models.OutputFormats)
	s.formatIndex = ((s.formatIndex+step)%n + n) % n
	return models.OutputFormats[s.formatIndex]
}

// Format returns the currently selected output preset.
func (s *State) Format() models.OutputFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.OutputFormats[models.ClampFormatIndex(s.formatIndex)]
}

// ── Audio ────────────────────────────────────────────────────────────────

// SetAudioDevice records the resolved ALSA capture device; empty disables
// audio for the process lifetime.
func (s *State) SetAudioDevice(dev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioDevice = dev
	s.audioEnabled = dev != ""
}

func (s *State) AudioDevice() string { s.mu.Lock(); defer s.mu.Unlock(); return s.audioDevice }

func (s *State) AudioEnabled() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.audioEnabled }

func (s *State) ToggleMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioMuted = !s.audioMuted
	return s.audioMuted
}

func (s *State) AudioMuted() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.audioMuted }

func (s *State) AdjustMicGain(deltaDB int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.micGainDB = clamp(s.micGainDB+deltaDB, MicGainMinDB, MicGainMaxDB)
	return s.micGainDB
}

func (s *State) SetMicGain(db int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.micGainDB = clamp(db, MicGainMinDB, MicGainMaxDB)
}

func (s *State) MicGainDB() int { s.mu.Lock(); defer s.mu.Unlock(); return s.micGainDB }

// UpdateAudioLevel stores a fresh RMS sample for one channel and applies
// peak-hold with multiplicative decay in the same critical section.
func (s *State) UpdateAudioLevel(ch int, rms, decay float64) {
	if ch < 0 || ch >= len(s.audioLevels) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioLevels[ch] = rms
	if rms > s.audioPeaks[ch] {
		s.audioPeaks[ch] = rms
	} else {
		s.audioPeaks[ch] *= decay
	}
}

// AudioLevel returns the last RMS sample for a channel.
func (s *State) AudioLevel(ch int) float64 {
	if ch < 0 || ch >= len(s.audioLevels) {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioLevels[ch]
}

// ── Recording lifecycle ──────────────────────────────────────────────────

// BeginRecording atomically marks the rig recording and attaches the
// encoder reference.
func (s *State) BeginRecording(ref EncoderRef, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = true
	s.encoder = ref
	s.recStart = start
}

// EndRecording atomically clears the recording flag and encoder reference.
// success increments the clip counter; async-death cleanup after a crash
// still counts, rejected stops never reach here.
func (s *State) EndRecording(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	s.encoder = nil
	s.recStart = time.Time{}
	if success {
		s.clipNumber++
	}
}

func (s *State) Recording() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.recording }

// Encoder returns the attached encoder reference, nil unless recording.
func (s *State) Encoder() EncoderRef { s.mu.Lock(); defer s.mu.Unlock(); return s.encoder }

func (s *State) ClipNumber() int { s.mu.Lock(); defer s.mu.Unlock(); return s.clipNumber }

func (s *State) ResetClipNumber() { s.mu.Lock(); defer s.mu.Unlock(); s.clipNumber = 1 }

// RequestRecordToggle queues a one-shot record start/stop intent. Multiple
// requests before the owning loop consumes one collapse into a single
// pending intent.
func (s *State) RequestRecordToggle() {
	select {
	case s.recordIntent <- struct{}{}:
	default:
	}
}

// TakeRecordToggle consumes a pending record intent, if any. Only the loop
// that owns the camera device may call this.
func (s *State) TakeRecordToggle() bool {
	select {
	case <-s.recordIntent:
		return true
	default:
		return false
	}
}

// ── Derived values ───────────────────────────────────────────────────────

// ShutterAngle converts the absolute exposure value (100µs units on most UVC
// cameras) to an approximate shutter angle at the current framerate.
func (s *State) ShutterAngle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	angle := float64(s.exposure) / 10000.0 * float64(s.fps) * 360.0
	if angle > 360 {
		return 360
	}
	if angle < 1 {
		return 1
	}
	return angle
}

// FocusPercent returns the focus position as 0–100.
func (s *State) FocusPercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := s.focusMax
	if max < 1 {
		max = 1
	}
	return s.focus * 100 / max
}

// Timecode renders the elapsed recording time as HH:MM:SS:FF.
func (s *State) Timecode(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recStart.IsZero() {
		return "00:00:00:00"
	}
	elapsed := now.Sub(s.recStart)
	secs := int(elapsed / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	sec := secs % 60
	frames := int(elapsed % time.Second * time.Duration(s.fps) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d:%02d", h, m, sec, frames)
}

// ClipName returns the next clip filename for the selected format.
func (s *State) ClipName(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := models.OutputFormats[models.ClampFormatIndex(s.formatIndex)]
	return fmt.Sprintf("CLIP_%s_%04d.%s", now.Format("20060102"), s.clipNumber, f.Ext)
}

// RemainingStorage estimates free space and recordable minutes at the
// current format and resolution. Errors degrade to (0, 0).
func (s *State) RemainingStorage() (freeGB float64, minutes int) {
	s.mu.Lock()
	dir := s.outputDir
	res := s.resolution
	f := models.OutputFormats[models.ClampFormatIndex(s.formatIndex)]
	s.mu.Unlock()

	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		return 0, 0
	}
	freeGB = float64(fs.Bavail) * float64(fs.Bsize) / (1 << 30)

	mbps := f.EstMbps
	switch res {
	case "1280x720":
		mbps = maxInt(1, mbps/3)
	case "1920x1080":
		mbps = maxInt(1, mbps/2)
	}
	if mbps > 0 {
		minutes = int(freeGB * 8000 / float64(mbps) / 60)
	}
	return freeGB, minutes
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
