// Package display abstracts where the rendered panel frame ends up: the
// SPI framebuffer on the rig, a terminal, or nowhere during tests.
package display

import "image"

// Sink receives one rendered panel frame per tick.
type Sink interface {
	Display(img *image.RGBA) error
	Close() error
}

// Null discards frames.
type Null struct{}

func (Null) Display(*image.RGBA) error { return nil }
func (Null) Close() error              { return nil }
