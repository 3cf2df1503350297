package recorder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kartoza/kartoza-camera-rig/internal/encoder"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// fakeProcess scripts an encoder subprocess.
type fakeProcess struct {
	mu sync.Mutex

	pid       int
	alive     bool
	quitErr   error
	waitErr   error // returned by the first Wait
	quitCalls int
	waitCalls int
	killCalls int

	// exitOnQuit makes the process die when it receives 'q'.
	exitOnQuit bool
}

func (f *fakeProcess) PID() int {
	return f.pid
}

func (f *fakeProcess) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeProcess) WriteQuit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quitCalls++
	if f.exitOnQuit {
		f.alive = false
	}
	return f.quitErr
}

func (f *fakeProcess) Wait(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls++
	if f.waitCalls == 1 && f.waitErr != nil {
		return f.waitErr
	}
	f.alive = false
	return nil
}

func (f *fakeProcess) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killCalls++
	f.alive = false
	return nil
}

// fakePreview records release/reopen ordering.
type fakePreview struct {
	mu       sync.Mutex
	released int
	reopened int
}

func (f *fakePreview) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakePreview) Reopen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopened++
	return nil
}

func (f *fakePreview) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released, f.reopened
}

// events collects notifier callbacks.
type events struct {
	mu       sync.Mutex
	started  []string
	stopped  []string
	failures []string
}

func (e *events) RecordingStarted(clip string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, clip)
}

func (e *events) RecordingStopped(clip string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = append(e.stopped, clip)
}

func (e *events) RecordingFailed(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = append(e.failures, reason)
}

func newTestArbiter(t *testing.T, proc *fakeProcess, spawnErr error) (*Arbiter, *state.State, *fakePreview, *events, *int) {
	t.Helper()
	st := state.New()
	st.SetOutputDir(t.TempDir())
	preview := &fakePreview{}
	ev := &events{}

	spawnCount := 0
	spawn := func(p encoder.Params, now time.Time) (encoder.Process, error) {
		spawnCount++
		if spawnErr != nil {
			return nil, spawnErr
		}
		return proc, nil
	}

	a := New(st, preview, spawn, ev)
	a.SettleDelay = time.Millisecond
	a.VerifyGrace = time.Millisecond
	a.StopWait = 50 * time.Millisecond
	a.ReopenDelay = time.Millisecond
	return a, st, preview, ev, &spawnCount
}

func TestStartStopCycle(t *testing.T) {
	proc := &fakeProcess{pid: 100, alive: true, exitOnQuit: true}
	a, st, preview, ev, spawns := newTestArbiter(t, proc, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.Phase() != Recording {
		t.Fatalf("phase after start: %s", a.Phase())
	}
	if !st.Recording() {
		t.Error("state not recording after start")
	}
	if ref := st.Encoder(); ref == nil || ref.PID() != 100 {
		t.Errorf("encoder ref: %v", ref)
	}
	if rel, _ := preview.counts(); rel != 1 {
		t.Errorf("preview released %d times, want 1", rel)
	}

	clipBefore := st.ClipNumber()
	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if a.Phase() != Idle || st.Recording() || st.Encoder() != nil {
		t.Error("stop left recording state behind")
	}
	if st.ClipNumber() != clipBefore+1 {
		t.Errorf("clip number after stop: %d, want %d", st.ClipNumber(), clipBefore+1)
	}
	if _, reo := preview.counts(); reo != 1 {
		t.Errorf("preview reopened %d times, want 1", reo)
	}
	if *spawns != 1 || proc.quitCalls != 1 || proc.killCalls != 0 {
		t.Errorf("spawns=%d quits=%d kills=%d", *spawns, proc.quitCalls, proc.killCalls)
	}
	if len(ev.started) != 1 || len(ev.stopped) != 1 {
		t.Errorf("notifications: started=%v stopped=%v", ev.started, ev.stopped)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	proc := &fakeProcess{pid: 100, alive: true, exitOnQuit: true}
	a, _, _, _, spawns := newTestArbiter(t, proc, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := a.Start(); err == nil {
		t.Error("second start must be rejected")
	}
	if *spawns != 1 {
		t.Errorf("spawned %d encoders, want 1", *spawns)
	}
	if a.Phase() != Recording {
		t.Errorf("rejection changed phase to %s", a.Phase())
	}
}

func TestStartVerifyFailure(t *testing.T) {
	// Encoder is already dead when the grace period ends.
	proc := &fakeProcess{pid: 100, alive: false}
	a, st, preview, ev, _ := newTestArbiter(t, proc, nil)

	if err := a.Start(); err == nil {
		t.Fatal("start must fail when the encoder dies during startup")
	}
	if a.Phase() != Idle {
		t.Errorf("phase after failed start: %s", a.Phase())
	}
	if st.Recording() || st.Encoder() != nil {
		t.Error("failed start left recording state behind")
	}
	if a.Handle() != nil {
		t.Error("failed start left a handle behind")
	}
	rel, reo := preview.counts()
	if rel != 1 || reo != 1 {
		t.Errorf("preview release/reopen = %d/%d, want 1/1", rel, reo)
	}
	if len(ev.failures) != 1 {
		t.Errorf("failures: %v", ev.failures)
	}
}

func TestStartSpawnError(t *testing.T) {
	a, st, preview, ev, _ := newTestArbiter(t, nil, errors.New("exec: ffmpeg not found"))

	if err := a.Start(); err == nil {
		t.Fatal("start must surface the spawn error")
	}
	if a.Phase() != Idle || st.Recording() {
		t.Error("spawn failure left state dirty")
	}
	if _, reo := preview.counts(); reo != 1 {
		t.Errorf("preview not restored after spawn failure")
	}
	if len(ev.failures) != 1 {
		t.Errorf("failures: %v", ev.failures)
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	// Process ignores 'q': first Wait times out, then a kill reclaims it.
	proc := &fakeProcess{pid: 100, alive: true, waitErr: encoder.ErrStopTimeout}
	a, st, _, _, _ := newTestArbiter(t, proc, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clipBefore := st.ClipNumber()
	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if proc.killCalls != 1 {
		t.Errorf("kill calls: %d, want 1", proc.killCalls)
	}
	if proc.waitCalls != 2 {
		t.Errorf("wait calls: %d, want timeout wait plus reclaim wait", proc.waitCalls)
	}
	if a.Phase() != Idle || st.Recording() {
		t.Error("killed stop left recording state behind")
	}
	if st.ClipNumber() != clipBefore+1 {
		t.Errorf("killed stop must still advance the clip counter")
	}
}

func TestStopBrokenPipeStillReclaims(t *testing.T) {
	proc := &fakeProcess{pid: 100, alive: true, quitErr: errors.New("write |1: broken pipe"), exitOnQuit: false}
	a, st, preview, _, _ := newTestArbiter(t, proc, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if st.Recording() || a.Phase() != Idle {
		t.Error("broken quit pipe prevented reclamation")
	}
	if _, reo := preview.counts(); reo != 1 {
		t.Error("preview not restored")
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	proc := &fakeProcess{pid: 100, alive: true}
	a, st, preview, ev, _ := newTestArbiter(t, proc, nil)

	clipBefore := st.ClipNumber()
	if err := a.Stop(); err != nil {
		t.Fatalf("idle stop: %v", err)
	}
	if st.ClipNumber() != clipBefore {
		t.Error("idle stop advanced the clip counter")
	}
	if rel, reo := preview.counts(); rel != 0 || reo != 0 {
		t.Error("idle stop touched the preview")
	}
	if len(ev.stopped) != 0 {
		t.Errorf("idle stop notified: %v", ev.stopped)
	}
	if proc.quitCalls != 0 {
		t.Error("idle stop poked the process")
	}
}

func TestPollConsumesIntent(t *testing.T) {
	proc := &fakeProcess{pid: 100, alive: true, exitOnQuit: true}
	a, st, _, _, spawns := newTestArbiter(t, proc, nil)

	st.RequestRecordToggle()
	a.Poll()
	if a.Phase() != Recording {
		t.Fatalf("intent did not start a recording: %s", a.Phase())
	}
	if st.TakeRecordToggle() {
		t.Error("intent not consumed")
	}

	st.RequestRecordToggle()
	a.Poll()
	if a.Phase() != Idle {
		t.Errorf("second intent did not stop: %s", a.Phase())
	}
	if *spawns != 1 {
		t.Errorf("spawns: %d", *spawns)
	}
}

func TestPollDetectsEncoderDeath(t *testing.T) {
	proc := &fakeProcess{pid: 100, alive: true}
	a, st, preview, ev, _ := newTestArbiter(t, proc, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Simulate ffmpeg dying mid-take.
	proc.mu.Lock()
	proc.alive = false
	proc.mu.Unlock()

	a.Poll()
	if a.Phase() != Idle || st.Recording() || st.Encoder() != nil {
		t.Error("dead encoder not cleaned up")
	}
	if _, reo := preview.counts(); reo != 1 {
		t.Error("preview not restored after encoder death")
	}
	if len(ev.failures) != 1 {
		t.Errorf("failures: %v", ev.failures)
	}

	// Cleanup is idempotent.
	a.Poll()
	if len(ev.failures) != 1 {
		t.Errorf("second poll re-reported the death: %v", ev.failures)
	}
}

func TestDeathBeatsQueuedStop(t *testing.T) {
	// A crash racing a user stop: the crash path cleans up and the stale
	// toggle must not start a new recording.
	proc := &fakeProcess{pid: 100, alive: true}
	a, st, _, ev, spawns := newTestArbiter(t, proc, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	st.RequestRecordToggle()
	proc.mu.Lock()
	proc.alive = false
	proc.mu.Unlock()

	a.Poll()
	if a.Phase() != Idle {
		t.Fatalf("phase: %s", a.Phase())
	}
	if len(ev.failures) != 1 || len(ev.stopped) != 0 {
		t.Errorf("crash must report a failure, not a clean stop: %+v", ev)
	}

	a.Poll()
	if *spawns != 1 {
		t.Errorf("stale toggle started a new recording: %d spawns", *spawns)
	}
}

func TestPollWithoutIntentIsQuiet(t *testing.T) {
	proc := &fakeProcess{pid: 100, alive: true}
	a, _, preview, _, spawns := newTestArbiter(t, proc, nil)

	for i := 0; i < 5; i++ {
		a.Poll()
	}
	if *spawns != 0 {
		t.Errorf("poll spawned without intent: %d", *spawns)
	}
	if rel, _ := preview.counts(); rel != 0 {
		t.Error("poll touched the preview")
	}
}
