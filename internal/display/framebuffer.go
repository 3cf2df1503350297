package display

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
)

// DefaultFramebufferDevice is where the SPI panel shows up with the
// fbtft overlay loaded.
const DefaultFramebufferDevice = "/dev/fb1"

// Framebuffer writes frames to an RGB565 big-endian framebuffer, the pixel
// format of the ST7735-class panels the rig uses.
type Framebuffer struct {
	f   *os.File
	buf []byte
}

// OpenFramebuffer opens the framebuffer device for writing.
func OpenFramebuffer(path string) (*Framebuffer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer %s: %w", path, err)
	}
	return &Framebuffer{f: f}, nil
}

// Display converts the frame to RGB565 and writes it at offset zero.
func (fb *Framebuffer) Display(img *image.RGBA) error {
	fb.buf = EncodeRGB565(img, fb.buf[:0])
	if _, err := fb.f.WriteAt(fb.buf, 0); err != nil {
		return fmt.Errorf("framebuffer write: %w", err)
	}
	return nil
}

func (fb *Framebuffer) Close() error {
	return fb.f.Close()
}

// EncodeRGB565 packs an RGBA image into big-endian RGB565, row-major.
// buf is reused when it has capacity.
func EncodeRGB565(img *image.RGBA, buf []byte) []byte {
	b := img.Bounds()
	n := b.Dx() * b.Dy() * 2
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r := row[x*4]
			g := row[x*4+1]
			bl := row[x*4+2]
			v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(bl>>3)
			binary.BigEndian.PutUint16(buf[i:], v)
			i += 2
		}
	}
	return buf
}
