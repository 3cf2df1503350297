// Package recorder owns the camera device handoff between the live preview
// and the ffmpeg encoder. Exactly one reader may hold the device at a time,
// so every start and stop goes through the single sequence implemented
// here: release, spawn, verify on the way up; quit, wait, kill, reclaim on
// the way down.
package recorder

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kartoza/kartoza-camera-rig/internal/encoder"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// Phase is the arbiter's lifecycle position.
type Phase int

const (
	Idle Phase = iota
	Starting
	Recording
	Stopping
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// Preview is the device holder the arbiter suspends while an encoder runs.
type Preview interface {
	Release() error
	Reopen() error
}

// Notifier receives recording lifecycle events for the operator.
type Notifier interface {
	RecordingStarted(clip string)
	RecordingStopped(clip string, d time.Duration)
	RecordingFailed(reason string)
}

type nopNotifier struct{}

func (nopNotifier) RecordingStarted(string)                {}
func (nopNotifier) RecordingStopped(string, time.Duration) {}
func (nopNotifier) RecordingFailed(string)                 {}

// Default handoff timings. The settle delay lets the kernel finish tearing
// down the preview's open handle before ffmpeg grabs the device; the grace
// period gives ffmpeg long enough to fail on a bad argument or busy device
// before we trust it.
const (
	DefaultSettleDelay = 300 * time.Millisecond
	DefaultVerifyGrace = 800 * time.Millisecond
	DefaultStopWait    = 10 * time.Second
	DefaultReopenDelay = 500 * time.Millisecond
	killReclaimTimeout = 2 * time.Second
)

// Arbiter serializes encoder starts and stops against the preview stream.
type Arbiter struct {
	st      *state.State
	preview Preview
	spawn   encoder.Spawner
	notify  Notifier

	SettleDelay time.Duration
	VerifyGrace time.Duration
	StopWait    time.Duration
	ReopenDelay time.Duration

	now func() time.Time

	mu     sync.Mutex
	phase  Phase
	handle *encoder.Handle
}

// New creates an arbiter. A nil spawner uses the real ffmpeg spawner; a nil
// notifier discards events.
func New(st *state.State, preview Preview, spawn encoder.Spawner, notify Notifier) *Arbiter {
	if spawn == nil {
		spawn = encoder.Spawn
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Arbiter{
		st:          st,
		preview:     preview,
		spawn:       spawn,
		notify:      notify,
		SettleDelay: DefaultSettleDelay,
		VerifyGrace: DefaultVerifyGrace,
		StopWait:    DefaultStopWait,
		ReopenDelay: DefaultReopenDelay,
		now:         time.Now,
	}
}

// Phase returns the current lifecycle phase.
func (a *Arbiter) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Handle returns the active encoder handle, nil outside a recording.
func (a *Arbiter) Handle() *encoder.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle
}

// Start releases the preview, spawns the encoder and verifies it survived
// its startup grace period. Any start while not idle is rejected without
// side effects. On a failed start the preview is restored and the rig is
// back in idle before Start returns.
func (a *Arbiter) Start() error {
	a.mu.Lock()
	if a.phase != Idle {
		phase := a.phase
		a.mu.Unlock()
		log.Printf("[REC] start rejected, arbiter is %s", phase)
		return fmt.Errorf("cannot start while %s", phase)
	}
	a.phase = Starting
	a.mu.Unlock()

	outDir := a.st.OutputDir()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		a.abortStart()
		a.notify.RecordingFailed("output dir: " + err.Error())
		return fmt.Errorf("create output dir: %w", err)
	}

	started := a.now()
	clip := a.st.ClipName(started)
	params := a.buildParams(filepath.Join(outDir, clip))

	if err := a.preview.Release(); err != nil {
		log.Printf("[REC] preview release: %v", err)
	}
	time.Sleep(a.SettleDelay)

	proc, err := a.spawn(params, started)
	if err != nil {
		a.reopenPreview()
		a.abortStart()
		a.notify.RecordingFailed(err.Error())
		return fmt.Errorf("spawn encoder: %w", err)
	}

	// ffmpeg exits fast on a busy device or bad arguments. Give it the
	// grace period, then require it to still be running.
	time.Sleep(a.VerifyGrace)
	if !proc.Alive() {
		werr := proc.Wait(time.Second)
		a.reopenPreview()
		a.abortStart()
		reason := "encoder exited during startup"
		if werr != nil {
			reason = fmt.Sprintf("encoder exited during startup: %v", werr)
		}
		log.Printf("[REC] %s", reason)
		a.notify.RecordingFailed(reason)
		return fmt.Errorf("%s", reason)
	}

	h := encoder.NewHandle(proc, params.Device, params.OutputPath, started)
	a.st.BeginRecording(h, started)

	a.mu.Lock()
	a.handle = h
	a.phase = Recording
	a.mu.Unlock()

	log.Printf("[REC] recording %s (pid %d)", clip, proc.PID())
	a.notify.RecordingStarted(clip)
	return nil
}

// Stop asks the encoder to finish the file, waits out the trailer write and
// escalates to SIGKILL if it stalls. The device is reclaimed and the
// preview restored no matter how the encoder died. Stop while not
// recording is a no-op.
func (a *Arbiter) Stop() error {
	a.mu.Lock()
	if a.phase != Recording {
		a.mu.Unlock()
		return nil
	}
	a.phase = Stopping
	h := a.handle
	a.mu.Unlock()

	clip := filepath.Base(h.Output)
	dur := a.now().Sub(h.Started)

	// 'q' on stdin makes ffmpeg flush and write the trailer. A dead
	// pipe just means it already exited.
	if err := h.Proc.WriteQuit(); err != nil {
		log.Printf("[REC] quit write: %v", err)
	}

	switch err := h.Proc.Wait(a.StopWait); err {
	case nil:
	case encoder.ErrStopTimeout:
		log.Printf("[REC] encoder ignored quit, killing pid %d", h.Proc.PID())
		if kerr := h.Proc.Kill(); kerr != nil {
			log.Printf("[REC] kill: %v", kerr)
		}
		_ = h.Proc.Wait(killReclaimTimeout)
	default:
		log.Printf("[REC] encoder exit: %v", err)
		if kerr := h.Proc.Kill(); kerr != nil {
			log.Printf("[REC] kill: %v", kerr)
		}
	}

	a.st.EndRecording(true)
	a.reopenPreview()

	a.mu.Lock()
	a.handle = nil
	a.phase = Idle
	a.mu.Unlock()

	log.Printf("[REC] stopped %s after %s", clip, dur.Round(time.Second))
	a.notify.RecordingStopped(clip, dur)
	return nil
}

// Poll runs one arbiter turn: check a running encoder for unexpected death,
// then consume at most one record intent. Intended to be called from the
// render loop. Death detection runs first so a stop request racing a crash
// does not spawn a fresh recording off the stale toggle.
func (a *Arbiter) Poll() {
	if a.reapDead() {
		// The crash already ended the take; a toggle queued against
		// the dead recording meant "stop" and is satisfied.
		a.st.TakeRecordToggle()
		return
	}

	if !a.st.TakeRecordToggle() {
		return
	}
	switch a.Phase() {
	case Idle:
		if err := a.Start(); err != nil {
			log.Printf("[REC] start: %v", err)
		}
	case Recording:
		if err := a.Stop(); err != nil {
			log.Printf("[REC] stop: %v", err)
		}
	default:
		// Intent consumed but dropped: mid-transition toggles would
		// race the handoff.
	}
}

// reapDead cleans up after an encoder that exited on its own. Returns true
// when a dead encoder was found this turn.
func (a *Arbiter) reapDead() bool {
	a.mu.Lock()
	recording := a.phase == Recording
	h := a.handle
	a.mu.Unlock()
	if !recording || h == nil || h.Proc.Alive() {
		return false
	}

	werr := h.Proc.Wait(time.Second)
	log.Printf("[REC] encoder died unexpectedly (pid %d): %v", h.Proc.PID(), werr)

	a.st.EndRecording(true)
	a.reopenPreview()

	a.mu.Lock()
	a.handle = nil
	a.phase = Idle
	a.mu.Unlock()

	a.notify.RecordingFailed("encoder stopped unexpectedly")
	return true
}

func (a *Arbiter) buildParams(outputPath string) encoder.Params {
	return encoder.Params{
		Device:      a.st.Device(),
		Resolution:  a.st.Resolution(),
		FPS:         a.st.FPS(),
		Format:      a.st.Format(),
		OutputPath:  outputPath,
		AudioDevice: a.st.AudioDevice(),
		AudioMuted:  a.st.AudioMuted(),
		MicGainDB:   a.st.MicGainDB(),
	}
}

func (a *Arbiter) abortStart() {
	a.mu.Lock()
	a.phase = Idle
	a.handle = nil
	a.mu.Unlock()
}

func (a *Arbiter) reopenPreview() {
	time.Sleep(a.ReopenDelay)
	if err := a.preview.Reopen(); err != nil {
		log.Printf("[REC] preview reopen: %v", err)
	}
}
