package state

import (
	"testing"
	"time"

	"github.com/kartoza/kartoza-camera-rig/internal/config"
)

type fakeRef struct{ pid int }

func (f fakeRef) PID() int { return f.pid }

func TestAdjustClamping(t *testing.T) {
	tests := []struct {
		name  string
		apply func(s *State) int
		want  int
	}{
		{"exposure floor", func(s *State) int { return s.AdjustExposure(-100000) }, ExposureMin},
		{"exposure ceiling", func(s *State) int { return s.AdjustExposure(100000) }, ExposureMax},
		{"gain floor", func(s *State) int { return s.AdjustGain(-10000) }, GainMin},
		{"gain ceiling", func(s *State) int { return s.AdjustGain(10000) }, GainMax},
		{"wb floor", func(s *State) int { return s.AdjustWBTemp(-100000) }, WBTempMin},
		{"wb ceiling", func(s *State) int { return s.AdjustWBTemp(100000) }, WBTempMax},
		{"mic gain floor", func(s *State) int { return s.AdjustMicGain(-100) }, MicGainMinDB},
		{"mic gain ceiling", func(s *State) int { return s.AdjustMicGain(100) }, MicGainMaxDB},
	}
	for _, tt := range tests {
		s := New()
		if got := tt.apply(s); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestShutterAngle(t *testing.T) {
	tests := []struct {
		exposure int
		fps      int
		want     float64
	}{
		{500, 30, 540.0 / 10.0 * 10}, // 500/10000*30*360 = 540 → clamped 360
		{100, 30, 108},
		{50, 30, 54},
		{50, 25, 45},
		{50, 60, 108},
		{10000, 30, 360},
	}
	for _, tt := range tests {
		s := New()
		s.SetFPS(tt.fps)
		s.AdjustExposure(tt.exposure - s.Exposure())
		got := s.ShutterAngle()
		want := tt.want
		if want > 360 {
			want = 360
		}
		if got != want {
			t.Errorf("exposure %d @ %dfps: got %.1f, want %.1f", tt.exposure, tt.fps, got, want)
		}
	}
}

func TestShutterAngleFloor(t *testing.T) {
	s := New()
	s.SetFPS(1)
	s.AdjustExposure(ExposureMin - s.Exposure())
	if got := s.ShutterAngle(); got != 1 {
		t.Errorf("expected floor of 1 degree, got %.2f", got)
	}
}

func TestRecordIntentConsumedOnce(t *testing.T) {
	s := New()
	if s.TakeRecordToggle() {
		t.Fatal("fresh state had a pending intent")
	}

	s.RequestRecordToggle()
	s.RequestRecordToggle()
	s.RequestRecordToggle()

	if !s.TakeRecordToggle() {
		t.Fatal("intent was not pending")
	}
	if s.TakeRecordToggle() {
		t.Error("stacked requests yielded more than one intent")
	}
}

func TestRecordingLifecycle(t *testing.T) {
	s := New()
	start := time.Now()

	if s.Recording() || s.Encoder() != nil {
		t.Fatal("fresh state claims to be recording")
	}

	s.BeginRecording(fakeRef{pid: 42}, start)
	if !s.Recording() {
		t.Error("BeginRecording did not set recording")
	}
	if ref := s.Encoder(); ref == nil || ref.PID() != 42 {
		t.Errorf("encoder ref not attached: %v", ref)
	}

	before := s.ClipNumber()
	s.EndRecording(true)
	if s.Recording() || s.Encoder() != nil {
		t.Error("EndRecording left recording state behind")
	}
	if s.ClipNumber() != before+1 {
		t.Errorf("clip number: got %d, want %d", s.ClipNumber(), before+1)
	}
}

func TestEndRecordingWithoutSuccess(t *testing.T) {
	s := New()
	s.BeginRecording(fakeRef{pid: 1}, time.Now())
	before := s.ClipNumber()
	s.EndRecording(false)
	if s.ClipNumber() != before {
		t.Errorf("failed recording advanced the clip counter to %d", s.ClipNumber())
	}
}

func TestTimecode(t *testing.T) {
	s := New()
	s.SetFPS(30)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.BeginRecording(fakeRef{pid: 1}, start)

	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "00:00:00:00"},
		{500 * time.Millisecond, "00:00:00:15"},
		{time.Second, "00:00:01:00"},
		{61 * time.Second, "00:01:01:00"},
		{3723*time.Second + 100*time.Millisecond, "01:02:03:03"},
	}
	for _, tt := range tests {
		if got := s.Timecode(start.Add(tt.elapsed)); got != tt.want {
			t.Errorf("elapsed %v: got %s, want %s", tt.elapsed, got, tt.want)
		}
	}

	s.EndRecording(true)
	if got := s.Timecode(start.Add(time.Hour)); got != "00:00:00:00" {
		t.Errorf("idle timecode: got %s", got)
	}
}

func TestClipName(t *testing.T) {
	s := New()
	now := time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)
	if got := s.ClipName(now); got != "CLIP_20260301_0001.mp4" {
		t.Errorf("clip name: got %s", got)
	}

	s.EndRecording(true) // clip 2
	s.CycleFormat(4)     // prores_hq → .mov
	if got := s.ClipName(now); got != "CLIP_20260301_0002.mov" {
		t.Errorf("clip name after format change: got %s", got)
	}
}

func TestCycleFormatWraps(t *testing.T) {
	s := New()
	start := s.FormatIndex()

	seen := make(map[int]bool)
	for i := 0; i < 7; i++ {
		seen[s.FormatIndex()] = true
		s.CycleFormat(1)
	}
	if s.FormatIndex() != start {
		t.Errorf("seven steps did not wrap: at %d", s.FormatIndex())
	}
	if len(seen) != 7 {
		t.Errorf("cycle visited %d formats, want 7", len(seen))
	}

	s.CycleFormat(-1)
	if s.FormatIndex() != 6 {
		t.Errorf("backward wrap: got %d, want 6", s.FormatIndex())
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := New()
	s.AdjustExposure(1000)
	s.AdjustGain(50)
	s.ToggleAutoFocus()
	s.CycleFormat(2)
	s.AdjustMicGain(6)

	out := s.Settings()
	restored := New()
	restored.ApplySettings(out)

	if restored.Exposure() != s.Exposure() ||
		restored.Gain() != s.Gain() ||
		restored.AutoFocus() != s.AutoFocus() ||
		restored.FormatIndex() != s.FormatIndex() ||
		restored.MicGainDB() != s.MicGainDB() {
		t.Errorf("round trip mismatch: %+v vs %+v", restored.Snapshot(), s.Snapshot())
	}
}

func TestApplySettingsClamps(t *testing.T) {
	s := New()
	bad := config.DefaultSettings()
	bad.Exposure = 999999
	bad.Gain = -50
	bad.FormatIndex = 99
	s.ApplySettings(bad)

	if s.Exposure() != ExposureMax {
		t.Errorf("exposure not clamped: %d", s.Exposure())
	}
	if s.Gain() != GainMin {
		t.Errorf("gain not clamped: %d", s.Gain())
	}
	if idx := s.FormatIndex(); idx < 0 || idx > 6 {
		t.Errorf("format index not clamped: %d", idx)
	}
}

func TestAudioPeakHold(t *testing.T) {
	s := New()

	s.UpdateAudioLevel(0, 0.8, 0.85)
	snap := s.Snapshot()
	if snap.AudioPeaks[0] != 0.8 {
		t.Fatalf("peak should jump to rms: %f", snap.AudioPeaks[0])
	}

	s.UpdateAudioLevel(0, 0.1, 0.85)
	snap = s.Snapshot()
	want := 0.8 * 0.85
	if diff := snap.AudioPeaks[0] - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("peak decay: got %f, want %f", snap.AudioPeaks[0], want)
	}
	if snap.AudioLevels[0] != 0.1 {
		t.Errorf("level should track rms: %f", snap.AudioLevels[0])
	}
}

func TestFocusPercent(t *testing.T) {
	s := New()
	s.SetFocusRange(0, 255)
	s.SetFocus(255)
	if got := s.FocusPercent(); got != 100 {
		t.Errorf("full focus: got %d%%", got)
	}
	s.SetFocus(0)
	if got := s.FocusPercent(); got != 0 {
		t.Errorf("zero focus: got %d%%", got)
	}
}
