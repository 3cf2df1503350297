package display

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	termimg "github.com/blacktop/go-termimg"
)

// Terminal paints frames inline in the terminal using the Kitty graphics
// protocol, falling back to whatever protocol is detected.
type Terminal struct {
	w       *os.File
	imageID int
	cells   int
}

// NewTerminal creates a terminal sink rendering at the given cell width.
func NewTerminal(cells int) *Terminal {
	if cells <= 0 {
		cells = 24
	}
	return &Terminal{w: os.Stdout, cells: cells}
}

func (t *Terminal) Display(img *image.RGBA) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	ti, err := termimg.From(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("terminal image: %w", err)
	}

	// A fresh image ID each frame forces the terminal to repaint
	// instead of reusing the cached transfer.
	t.imageID++
	ti.Protocol(termimg.DetectProtocol()).
		Width(t.cells).
		Height(t.cells / 2).
		Scale(termimg.ScaleFit).
		ImageNum(t.imageID)

	rendered, err := ti.Render()
	if err != nil {
		return fmt.Errorf("render frame: %w", err)
	}

	// Home the cursor so successive frames overdraw in place.
	fmt.Fprint(t.w, "\x1b[H"+rendered)
	return nil
}

func (t *Terminal) Close() error {
	fmt.Fprint(t.w, "\x1b_Ga=d\x1b\\")
	return nil
}
