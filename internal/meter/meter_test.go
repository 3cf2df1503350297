package meter

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// block builds an interleaved s16le stereo block from per-channel values.
func block(left, right []int16) []byte {
	buf := make([]byte, len(left)*4)
	for i := range left {
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(left[i]))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(right[i]))
	}
	return buf
}

func constant(v int16, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestBlockRMSSilence(t *testing.T) {
	l, r := BlockRMS(block(constant(0, 1024), constant(0, 1024)))
	if l != 0 || r != 0 {
		t.Errorf("silence: got %f/%f", l, r)
	}
}

func TestBlockRMSFullScale(t *testing.T) {
	l, r := BlockRMS(block(constant(-32768, 1024), constant(0, 1024)))
	if math.Abs(l-1.0) > 1e-6 {
		t.Errorf("full scale left: got %f, want 1.0", l)
	}
	if r != 0 {
		t.Errorf("silent right: got %f", r)
	}
}

func TestBlockRMSSquareWave(t *testing.T) {
	// A ±half-scale square wave has RMS equal to its amplitude.
	samples := make([]int16, 1024)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 16384
		} else {
			samples[i] = -16384
		}
	}
	l, _ := BlockRMS(block(samples, constant(0, 1024)))
	if math.Abs(l-0.5) > 1e-6 {
		t.Errorf("square wave: got %f, want 0.5", l)
	}
}

func TestBlockRMSChannelsIndependent(t *testing.T) {
	l, r := BlockRMS(block(constant(16384, 1024), constant(8192, 1024)))
	if math.Abs(l-0.5) > 1e-6 || math.Abs(r-0.25) > 1e-6 {
		t.Errorf("got %f/%f, want 0.5/0.25", l, r)
	}
}

func TestBlockRMSEmpty(t *testing.T) {
	l, r := BlockRMS(nil)
	if l != 0 || r != 0 {
		t.Errorf("empty block: got %f/%f", l, r)
	}
}

func TestParseCardList(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{
			"obsbot preferred",
			`**** List of CAPTURE Hardware Devices ****
card 0: Headphones [bcm2835 Headphones], device 0: bcm2835 Headphones [bcm2835 Headphones]
card 2: Tiny4K [OBSBOT Tiny 4K], device 0: USB Audio [USB Audio]
`,
			"hw:2,0",
		},
		{
			"generic usb audio fallback",
			`**** List of CAPTURE Hardware Devices ****
card 1: Device [USB Audio Device], device 0: USB Audio [USB Audio]
`,
			"hw:1,0",
		},
		{
			"meet series camera",
			`card 3: Meet [OBSBOT Meet SE], device 0: USB Audio [USB Audio]`,
			"hw:3,0",
		},
		{
			"obsbot wins over other usb audio",
			`card 0: Device [USB Audio Device], device 0: USB Audio [USB Audio]
card 1: Tail2 [OBSBOT Tail Air], device 0: USB Audio [USB Audio]`,
			"hw:1,0",
		},
		{
			"nothing usable",
			`card 0: Headphones [bcm2835 Headphones], device 0: bcm2835 Headphones`,
			"",
		},
		{"empty output", "", ""},
	}
	for _, tt := range tests {
		if got := ParseCardList(tt.out); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStartWithoutDeviceIsNoop(t *testing.T) {
	st := state.New()
	m := New(st)
	if err := m.Start(); err != nil {
		t.Fatalf("start without device: %v", err)
	}
	m.Stop()

	if st.AudioLevel(0) != 0 || st.AudioLevel(1) != 0 {
		t.Error("idle meter moved the levels")
	}
}
