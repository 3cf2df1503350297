// Package meter reads the capture microphone and publishes per-channel
// signal levels for the panel's dBFS bars.
package meter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kartoza/kartoza-camera-rig/internal/encoder"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// BlockSamples is the number of frames folded into one level reading.
const BlockSamples = 1024

// PeakDecay is the per-block decay factor applied to the held peak.
const PeakDecay = 0.85

// Meter samples an ALSA device through an ffmpeg pipe and feeds RMS levels
// into the shared capture state.
type Meter struct {
	st *state.State

	mu   sync.Mutex
	cmd  *exec.Cmd
	stop chan struct{}
	wg   sync.WaitGroup
}

func New(st *state.State) *Meter {
	return &Meter{st: st}
}

// Start begins metering the state's audio device. Without a configured
// device the meter stays off and the bars read silence.
func (m *Meter) Start() error {
	dev := m.st.AudioDevice()
	if dev == "" {
		return nil
	}

	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-f", "alsa",
		"-ar", strconv.Itoa(encoder.AudioSampleRate),
		"-ac", strconv.Itoa(encoder.AudioChannels),
		"-i", dev,
		"-f", "s16le",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio meter pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio meter start: %w", err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.stop = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(stdout)
	return nil
}

// Stop kills the capture pipe and waits for the reader to drain.
func (m *Meter) Stop() {
	m.mu.Lock()
	cmd := m.cmd
	stop := m.stop
	m.cmd = nil
	m.mu.Unlock()

	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	m.wg.Wait()
}

func (m *Meter) loop(r io.Reader) {
	defer m.wg.Done()

	br := bufio.NewReaderSize(r, 1<<16)
	block := make([]byte, BlockSamples*encoder.AudioChannels*2)
	for {
		m.mu.Lock()
		stop := m.stop
		m.mu.Unlock()
		select {
		case <-stop:
			return
		default:
		}

		if _, err := io.ReadFull(br, block); err != nil {
			// Pipe closed, device yanked, or Stop killed the
			// process. Either way the meter just goes quiet.
			if err != io.EOF {
				log.Printf("[AUDIO] meter read ended: %v", err)
			}
			return
		}
		left, right := BlockRMS(block)
		m.st.UpdateAudioLevel(0, left, PeakDecay)
		m.st.UpdateAudioLevel(1, right, PeakDecay)
	}
}

// BlockRMS computes normalized per-channel RMS over one interleaved
// s16le stereo block. Results are in [0,1].
func BlockRMS(block []byte) (left, right float64) {
	n := len(block) / 4
	if n == 0 {
		return 0, 0
	}
	var sumL, sumR float64
	for i := 0; i < n; i++ {
		l := int16(binary.LittleEndian.Uint16(block[i*4:]))
		r := int16(binary.LittleEndian.Uint16(block[i*4+2:]))
		fl := float64(l) / 32768.0
		fr := float64(r) / 32768.0
		sumL += fl * fl
		sumR += fr * fr
	}
	return math.Sqrt(sumL / float64(n)), math.Sqrt(sumR / float64(n))
}

// DetectDevice scans `arecord -l` for the camera's own microphone and
// returns an ALSA hw spec, or "" when nothing matches.
func DetectDevice() string {
	out, err := exec.Command("arecord", "-l").Output()
	if err != nil {
		return ""
	}
	return ParseCardList(string(out))
}

// ParseCardList picks the capture card out of `arecord -l` output.
// Preference order: an OBSBOT card, then anything that looks like a USB
// conference mic.
func ParseCardList(out string) string {
	type card struct {
		num  int
		name string
	}
	var cards []card
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "card ") {
			continue
		}
		rest := strings.TrimPrefix(line, "card ")
		numStr, tail, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSpace(numStr))
		if err != nil {
			continue
		}
		cards = append(cards, card{num: num, name: strings.ToLower(tail)})
	}
	for _, c := range cards {
		if strings.Contains(c.name, "obsbot") {
			return fmt.Sprintf("hw:%d,0", c.num)
		}
	}
	for _, c := range cards {
		if strings.Contains(c.name, "meet") || strings.Contains(c.name, "usb audio") {
			return fmt.Sprintf("hw:%d,0", c.num)
		}
	}
	return ""
}
