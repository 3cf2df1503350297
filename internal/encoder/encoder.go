// Package encoder builds and supervises the external ffmpeg encoder
// process. ffmpeg always opens the V4L2 device directly: piping raw 4K
// frames through the rig would cost ~700MB/s, so the preview releases the
// device, ffmpeg records, and the preview reopens afterwards.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kartoza/kartoza-camera-rig/internal/models"
)

// Broadcast-standard audio capture parameters.
const (
	AudioSampleRate = 48000
	AudioChannels   = 2
)

// Params is the resolved parameter set for one recording.
type Params struct {
	Device     string
	Resolution string
	FPS        int
	Format     models.OutputFormat
	OutputPath string

	AudioDevice string // ALSA hw:N,0 string, empty for video-only
	AudioMuted  bool
	MicGainDB   int
}

// HasAudio reports whether the command will include an audio input.
func (p Params) HasAudio() bool {
	return p.AudioDevice != "" && !p.AudioMuted
}

// GainLinear converts the mic gain offset to the linear multiplier used by
// ffmpeg's volume filter.
func (p Params) GainLinear() float64 {
	return math.Pow(10, float64(p.MicGainDB)/20.0)
}

// BuildArgs constructs the full ffmpeg argument vector for p.
func BuildArgs(p Params, now time.Time) []string {
	f := p.Format

	args := []string{
		"-y",
		"-f", "v4l2",
		"-input_format", "mjpeg",
		"-video_size", p.Resolution,
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", p.Device,
	}

	if p.HasAudio() {
		args = append(args,
			"-f", "alsa",
			"-channels", fmt.Sprintf("%d", AudioChannels),
			"-sample_rate", fmt.Sprintf("%d", AudioSampleRate),
			"-i", p.AudioDevice,
		)
	}

	args = append(args, "-vcodec", f.VideoCodec)
	args = append(args, f.VideoParams...)
	args = append(args,
		"-colorspace", "bt709",
		"-color_primaries", "bt709",
		"-color_trc", "bt709",
	)

	if p.HasAudio() {
		args = append(args, "-acodec", f.AudioCodec)
		if f.AudioBitrate != "" {
			args = append(args, "-b:a", f.AudioBitrate)
		}
		args = append(args,
			"-ar", fmt.Sprintf("%d", AudioSampleRate),
			"-ac", fmt.Sprintf("%d", AudioChannels),
		)
		if math.Abs(float64(p.MicGainDB)) > 0.1 {
			args = append(args, "-af", fmt.Sprintf("volume=%.4f", p.GainLinear()))
		}
	} else {
		args = append(args, "-an")
	}

	args = append(args, f.MuxFlags...)
	args = append(args,
		"-metadata", "creation_time="+now.Format(time.RFC3339),
		"-metadata", "artist=Kartoza Camera Rig",
		"-metadata", "comment=Format:"+f.Label,
		p.OutputPath,
	)
	return args
}

// ErrStopTimeout is returned by Wait when the encoder does not exit within
// the deadline.
var ErrStopTimeout = errors.New("encoder did not exit before deadline")

// Process abstracts the spawned encoder for the recorder. The real
// implementation wraps exec.Cmd; tests substitute fakes.
type Process interface {
	// PID returns the OS process ID.
	PID() int
	// Alive reports whether the process is still running.
	Alive() bool
	// WriteQuit writes the single 'q' byte to the encoder's stdin and
	// flushes, asking it to finalize the file and exit.
	WriteQuit() error
	// Wait blocks until exit or timeout; zero timeout waits forever.
	Wait(timeout time.Duration) error
	// Kill forcefully terminates the process.
	Kill() error
}

// Spawner starts an encoder process for a parameter set.
type Spawner func(p Params, now time.Time) (Process, error)

// Handle is the rig's reference to a live encoder.
type Handle struct {
	ID      string
	Proc    Process
	Device  string
	Output  string
	Started time.Time
}

// PID implements state.EncoderRef.
func (h *Handle) PID() int {
	if h == nil || h.Proc == nil {
		return 0
	}
	return h.Proc.PID()
}

// NewHandle wraps a started process.
func NewHandle(proc Process, device, output string, started time.Time) *Handle {
	return &Handle{
		ID:      uuid.New().String(),
		Proc:    proc,
		Device:  device,
		Output:  output,
		Started: started,
	}
}

// execProcess is the exec.Cmd-backed Process.
type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
	err   error
}

// Spawn starts ffmpeg with the arguments for p. ffmpeg's stderr goes to the
// rig's stderr so encode errors are visible in the terminal.
func Spawn(p Params, now time.Time) (Process, error) {
	cmd := exec.Command("ffmpeg", BuildArgs(p, now)...)
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open encoder stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	ep := &execProcess{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	go func() {
		ep.err = cmd.Wait()
		close(ep.done)
	}()
	return ep, nil
}

func (e *execProcess) PID() int {
	if e.cmd.Process == nil {
		return 0
	}
	return e.cmd.Process.Pid
}

func (e *execProcess) Alive() bool {
	select {
	case <-e.done:
		return false
	default:
	}
	if e.cmd.Process == nil {
		return false
	}
	return e.cmd.Process.Signal(syscall.Signal(0)) == nil
}

func (e *execProcess) WriteQuit() error {
	if _, err := e.stdin.Write([]byte("q")); err != nil {
		return err
	}
	return e.stdin.Close()
}

func (e *execProcess) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-e.done
		return e.exitErr()
	}
	select {
	case <-e.done:
		return e.exitErr()
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// exitErr reports abnormal exits; a clean zero exit returns nil.
func (e *execProcess) exitErr() error {
	if e.err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(e.err, &exitErr) {
		return fmt.Errorf("encoder exited with code %d", exitErr.ExitCode())
	}
	return e.err
}

func (e *execProcess) Kill() error {
	if e.cmd.Process == nil {
		return nil
	}
	return e.cmd.Process.Kill()
}
