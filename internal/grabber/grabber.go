// Package grabber maintains the live preview frame for the panel display.
//
// The frame lives in a single slot: every update overwrites it and readers
// get an independent copy, so a slow consumer never blocks the producer and
// a stale-by-one-frame read is expected.
package grabber

import (
	"bufio"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/nfnt/resize"
)

// Size is the panel frame edge length in pixels.
const Size = 128

// Low-resolution stream used when the grabber opens the camera itself.
const (
	pullWidth  = 320
	pullHeight = 240
	pullFPS    = 15
)

// feedWait is how long Run waits for an external Feed before opening the
// camera itself. The decision is made once: a feeder that stops calling
// Feed afterwards freezes the preview on its last frame.
const feedWait = 15 * time.Second

const (
	feedPollInterval = 100 * time.Millisecond
	readBackoff      = 50 * time.Millisecond
)

// Source is the single-slot live-frame cache.
type Source struct {
	device string

	mu    sync.Mutex
	frame *image.RGBA
	ok    bool // first successful feed happened
	fed   bool // an external feeder exists

	placeholder *image.RGBA

	stop chan struct{}
	wg   sync.WaitGroup

	pullMu    sync.Mutex
	pull      *pullStream
	suspended bool
}

// New creates a source for the given camera device.
func New(device string) *Source {
	return &Source{
		device:      device,
		placeholder: makePlaceholder(),
		stop:        make(chan struct{}),
	}
}

// Feed stores an externally-sourced frame. Malformed input is dropped
// silently; Feed never fails outward.
func (s *Source) Feed(img image.Image) {
	defer func() {
		_ = recover()
	}()
	if img == nil {
		return
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return
	}

	// Center-crop to square, then scale to the panel size.
	sq := b.Dx()
	if b.Dy() < sq {
		sq = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-sq)/2
	y0 := b.Min.Y + (b.Dy()-sq)/2

	cropped := image.NewRGBA(image.Rect(0, 0, sq, sq))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(x0, y0), draw.Src)

	scaled := resize.Resize(Size, Size, cropped, resize.Bilinear)
	out := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)

	s.mu.Lock()
	s.frame = out
	s.ok = true
	s.fed = true
	s.mu.Unlock()
}

// Frame returns a copy of the most recent frame, or the placeholder if no
// frame has ever been fed. It never blocks on the producer.
func (s *Source) Frame() *image.RGBA {
	s.mu.Lock()
	src := s.frame
	if src == nil {
		src = s.placeholder
	}
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	s.mu.Unlock()
	return out
}

// Ready reports whether at least one frame has been stored.
func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ok
}

// Start launches the background feed-or-pull loop.
func (s *Source) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop terminates the loop and releases any camera stream the grabber
// opened. Pushed frames never needed a release.
func (s *Source) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.closePull()
	s.wg.Wait()
}

func (s *Source) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// run waits for an external feeder, then either idles (push mode) or pulls
// frames from its own low-resolution camera stream until Stop.
func (s *Source) run() {
	defer s.wg.Done()

	deadline := time.Now().Add(feedWait)
	for time.Now().Before(deadline) && !s.stopped() {
		s.mu.Lock()
		fed := s.fed
		s.mu.Unlock()
		if fed {
			// Push mode for the rest of this source's lifetime;
			// Feed does all the work.
			<-s.stop
			return
		}
		time.Sleep(feedPollInterval)
	}
	if s.stopped() {
		return
	}

	log.Printf("[PREVIEW] no feeder, opening %s at %dx%d", s.device, pullWidth, pullHeight)
	for !s.stopped() {
		if s.isSuspended() {
			time.Sleep(feedPollInterval)
			continue
		}
		stream, err := s.ensurePull()
		if err != nil {
			// Open failure is non-fatal: the placeholder stays up.
			log.Printf("[PREVIEW] cannot open %s: %v", s.device, err)
			time.Sleep(time.Second)
			continue
		}
		img, err := stream.next()
		if err != nil {
			s.closePull()
			time.Sleep(readBackoff)
			continue
		}
		s.feedInternal(img)
	}
}

// feedInternal stores a pulled frame without flipping the push-mode flag.
func (s *Source) feedInternal(img image.Image) {
	sq := img.Bounds().Dx()
	if img.Bounds().Dy() < sq {
		sq = img.Bounds().Dy()
	}
	x0 := img.Bounds().Min.X + (img.Bounds().Dx()-sq)/2
	y0 := img.Bounds().Min.Y + (img.Bounds().Dy()-sq)/2
	cropped := image.NewRGBA(image.Rect(0, 0, sq, sq))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(x0, y0), draw.Src)
	scaled := resize.Resize(Size, Size, cropped, resize.Bilinear)
	out := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)

	s.mu.Lock()
	s.frame = out
	s.ok = true
	s.mu.Unlock()
}

// ── Device handoff for the recorder ──────────────────────────────────────

// Release gives up the grabber's hold on the camera device so the encoder
// can open it. In push mode the grabber never held the device and this is a
// no-op.
func (s *Source) Release() error {
	s.pullMu.Lock()
	s.suspended = true
	s.pullMu.Unlock()
	s.closePull()
	return nil
}

// Reopen resumes the grabber's own stream after the encoder has released
// the device.
func (s *Source) Reopen() error {
	s.pullMu.Lock()
	s.suspended = false
	s.pullMu.Unlock()
	return nil
}

func (s *Source) isSuspended() bool {
	s.pullMu.Lock()
	defer s.pullMu.Unlock()
	return s.suspended
}

func (s *Source) ensurePull() (*pullStream, error) {
	s.pullMu.Lock()
	defer s.pullMu.Unlock()
	if s.pull != nil {
		return s.pull, nil
	}
	p, err := openPull(s.device)
	if err != nil {
		return nil, err
	}
	s.pull = p
	return p, nil
}

func (s *Source) closePull() {
	s.pullMu.Lock()
	p := s.pull
	s.pull = nil
	s.pullMu.Unlock()
	if p != nil {
		p.close()
	}
}

// pullStream decodes MJPEG frames from an ffmpeg pipe.
type pullStream struct {
	cmd *exec.Cmd
	out *bufio.Reader
	rc  io.ReadCloser
}

func openPull(device string) (*pullStream, error) {
	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-f", "v4l2",
		"-input_format", "mjpeg",
		"-video_size", strconv.Itoa(pullWidth)+"x"+strconv.Itoa(pullHeight),
		"-framerate", strconv.Itoa(pullFPS),
		"-i", device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &pullStream{cmd: cmd, out: bufio.NewReaderSize(stdout, 1<<16), rc: stdout}, nil
}

// next decodes one JPEG frame off the pipe.
func (p *pullStream) next() (image.Image, error) {
	return jpeg.Decode(p.out)
}

func (p *pullStream) close() {
	p.rc.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
}

// makePlaceholder draws the standby card shown before the first frame.
func makePlaceholder() *image.RGBA {
	bg := color.RGBA{8, 8, 16, 255}
	line := color.RGBA{40, 40, 60, 255}
	border := color.RGBA{85, 85, 100, 255}
	box := color.RGBA{18, 18, 30, 255}

	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for i := 0; i < Size; i++ {
		img.Set(i, 0, border)
		img.Set(i, Size-1, border)
		img.Set(0, i, border)
		img.Set(Size-1, i, border)
		img.Set(i, i, line)
		img.Set(Size-1-i, i, line)
	}
	draw.Draw(img, image.Rect(20, 52, 108, 68), image.NewUniform(box), image.Point{}, draw.Src)
	return img
}
