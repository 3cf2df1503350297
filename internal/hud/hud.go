// Package hud paints the 128x128 panel image: live frame, recording chrome
// and the per-page readouts.
package hud

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kartoza/kartoza-camera-rig/internal/models"
	"github.com/kartoza/kartoza-camera-rig/internal/panel"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// Size matches the panel frame edge length.
const Size = 128

var (
	colText   = color.RGBA{230, 230, 230, 255}
	colDim    = color.RGBA{140, 140, 150, 255}
	colRec    = color.RGBA{235, 40, 40, 255}
	colGreen  = color.RGBA{60, 200, 80, 255}
	colYellow = color.RGBA{230, 200, 40, 255}
	colBar    = color.RGBA{0, 0, 0, 200}
	colAccent = color.RGBA{80, 160, 240, 255}
	colPeak   = color.RGBA{255, 255, 255, 255}
)

const blinkPeriod = 500 * time.Millisecond

// Compositor renders the panel HUD over the current preview frame.
type Compositor struct {
	st *state.State
	pn *panel.Panel

	now func() time.Time
}

func New(st *state.State, pn *panel.Panel) *Compositor {
	return &Compositor{st: st, pn: pn, now: time.Now}
}

// Render draws the HUD onto frame and returns it. The frame is the
// caller's copy and is mutated in place.
func (c *Compositor) Render(frame *image.RGBA) *image.RGBA {
	if frame == nil || frame.Bounds().Dx() != Size || frame.Bounds().Dy() != Size {
		frame = image.NewRGBA(image.Rect(0, 0, Size, Size))
	}
	page := c.pn.Page()
	if page != panel.PageLive {
		dim(frame)
	}

	c.topBar(frame, page)
	switch page {
	case panel.PageLive:
		c.liveOverlay(frame)
	case panel.PageStatus:
		c.statusPage(frame)
	case panel.PageExposure:
		c.exposurePage(frame)
	case panel.PageWhiteBal:
		c.whiteBalPage(frame)
	case panel.PageFocus:
		c.focusPage(frame)
	case panel.PageDisplay:
		c.displayPage(frame)
	case panel.PageAudio:
		c.audioPage(frame)
	case panel.PageFormat:
		c.formatPage(frame)
	case panel.PageStorage:
		c.storagePage(frame)
	}
	c.pageDots(frame, page)
	c.flashBox(frame)
	return frame
}

// topBar shows the recording state or the page name, with the clip counter
// on the right.
func (c *Compositor) topBar(img *image.RGBA, page panel.Page) {
	fill(img, image.Rect(0, 0, Size, 13), colBar)
	snap := c.st.Snapshot()

	if snap.Recording {
		if c.blinkOn() {
			fill(img, image.Rect(3, 3, 10, 10), colRec)
		}
		text(img, 13, 10, colText, c.st.Timecode(c.now()))
	} else {
		text(img, 3, 10, colText, page.String())
	}
	clip := fmt.Sprintf("%04d", snap.ClipNumber)
	text(img, Size-3-width(clip), 10, colDim, clip)
}

func (c *Compositor) blinkOn() bool {
	return (c.now().UnixMilli()/int64(blinkPeriod/time.Millisecond))%2 == 0
}

// liveOverlay keeps the frame visible and adds the thin readouts: summary
// line, mini focus bar and mini meters.
func (c *Compositor) liveOverlay(img *image.RGBA) {
	snap := c.st.Snapshot()
	f := models.OutputFormats[snap.FormatIndex]

	fill(img, image.Rect(0, 103, Size, 115), colBar)
	sum := fmt.Sprintf("%s %dfps %.0f°", f.Label, snap.FPS, c.st.ShutterAngle())
	text(img, 3, 112, colText, sum)

	if snap.ShowGuides {
		guides(img)
	}
	c.focusBar(img, 15, Size-10, 98, 3)
	c.meterBar(img, 0, 3, 117, Size-6, 2)
	c.meterBar(img, 1, 3, 120, Size-6, 2)
}

func (c *Compositor) statusPage(img *image.RGBA) {
	snap := c.st.Snapshot()
	f := models.OutputFormats[snap.FormatIndex]
	freeGB, minutes := c.st.RemainingStorage()

	lines := []string{
		filepath.Base(snap.Device),
		fmt.Sprintf("%s %dfps", models.ResolutionLabel(snap.Resolution), snap.FPS),
		f.Label,
		fmt.Sprintf("CLIP %04d", snap.ClipNumber),
		fmt.Sprintf("%.0fGB %dmin", freeGB, minutes),
	}
	c.textLines(img, lines)
}

func (c *Compositor) exposurePage(img *image.RGBA) {
	snap := c.st.Snapshot()
	expMark, gainMark := ">", " "
	if c.pn.GainSelected() {
		expMark, gainMark = " ", ">"
	}
	ae := "AE OFF"
	if snap.AutoExp {
		ae = "AE ON"
	}
	lines := []string{
		ae,
		fmt.Sprintf("%sEXP %d", expMark, snap.Exposure),
		fmt.Sprintf(" %.0f° shutter", c.st.ShutterAngle()),
		fmt.Sprintf("%sGAIN %d", gainMark, snap.Gain),
	}
	c.textLines(img, lines)
}

func (c *Compositor) whiteBalPage(img *image.RGBA) {
	snap := c.st.Snapshot()
	awb := "AWB OFF"
	if snap.AutoWB {
		awb = "AWB ON"
	}
	c.textLines(img, []string{awb, fmt.Sprintf("%dK", snap.WBTemp)})
}

func (c *Compositor) focusPage(img *image.RGBA) {
	snap := c.st.Snapshot()
	af := "AF OFF"
	if snap.AutoFocus {
		af = "AF ON"
	}
	peak := "PEAK OFF"
	if snap.FocusPeaking {
		peak = "PEAK ON"
	}
	c.textLines(img, []string{af, fmt.Sprintf("FOCUS %d%%", c.st.FocusPercent()), peak})
	c.focusBar(img, 10, 84, Size-20, 6)
}

func (c *Compositor) displayPage(img *image.RGBA) {
	snap := c.st.Snapshot()
	c.textLines(img, []string{
		onOff("GUIDES", snap.ShowGuides),
		onOff("HIST", snap.ShowHistogram),
		onOff("PEAK", snap.FocusPeaking),
	})
}

func (c *Compositor) audioPage(img *image.RGBA) {
	snap := c.st.Snapshot()
	dev := snap.AudioDevice
	if dev == "" {
		dev = "NO MIC"
	}
	mute := "LIVE"
	if snap.AudioMuted {
		mute = "MUTED"
	}
	c.textLines(img, []string{
		dev,
		fmt.Sprintf("%s %+ddB", mute, snap.MicGainDB),
	})
	c.meterBar(img, 0, 10, 78, Size-20, 8)
	c.meterBar(img, 1, 10, 92, Size-20, 8)
}

func (c *Compositor) formatPage(img *image.RGBA) {
	snap := c.st.Snapshot()
	f := models.OutputFormats[snap.FormatIndex]
	lines := []string{
		f.Label,
		"." + f.Ext,
		f.Note,
		fmt.Sprintf("~%dMbps", f.EstMbps),
	}
	if f.CPUWarn {
		lines = append(lines, "! HIGH CPU")
	}
	c.textLines(img, lines)
}

func (c *Compositor) storagePage(img *image.RGBA) {
	snap := c.st.Snapshot()
	freeGB, minutes := c.st.RemainingStorage()
	c.textLines(img, []string{
		fmt.Sprintf("%.1f GB free", freeGB),
		fmt.Sprintf("~%d min", minutes),
		filepath.Base(snap.OutputDir),
		fmt.Sprintf("NEXT %04d", snap.ClipNumber),
	})
}

// textLines paints page body lines starting under the top bar.
func (c *Compositor) textLines(img *image.RGBA, lines []string) {
	y := 28
	for _, l := range lines {
		text(img, 6, y, colText, l)
		y += 14
	}
}

// focusBar draws the focus position track with a marker.
func (c *Compositor) focusBar(img *image.RGBA, x, y, w, h int) {
	fill(img, image.Rect(x, y, x+w, y+h), color.RGBA{50, 50, 60, 255})
	pos := x + c.st.FocusPercent()*w/100
	fill(img, image.Rect(pos-1, y-1, pos+2, y+h+1), colAccent)
}

// meterBar draws one channel's level with green/yellow/red zones and a
// white peak-hold tick.
func (c *Compositor) meterBar(img *image.RGBA, ch, x, y, w, h int) {
	snap := c.st.Snapshot()
	level := snap.AudioLevels[ch]
	peak := snap.AudioPeaks[ch]

	fill(img, image.Rect(x, y, x+w, y+h), color.RGBA{30, 30, 36, 255})
	lw := int(level * float64(w))
	for px := 0; px < lw; px++ {
		frac := float64(px) / float64(w)
		col := colGreen
		switch {
		case frac >= 0.85:
			col = colRec
		case frac >= 0.6:
			col = colYellow
		}
		fill(img, image.Rect(x+px, y, x+px+1, y+h), col)
	}
	if peak > 0 {
		pp := x + int(peak*float64(w))
		fill(img, image.Rect(pp, y, pp+1, y+h), colPeak)
	}
}

// pageDots marks the current page along the bottom edge.
func (c *Compositor) pageDots(img *image.RGBA, page panel.Page) {
	n := panel.NumPages
	total := n*6 - 2
	x := (Size - total) / 2
	y := Size - 4
	for i := 0; i < n; i++ {
		col := color.RGBA{70, 70, 80, 255}
		if i == int(page) {
			col = colText
		}
		fill(img, image.Rect(x+i*6, y, x+i*6+4, y+2), col)
	}
}

// flashBox overlays the transient confirmation message.
func (c *Compositor) flashBox(img *image.RGBA) {
	msg := c.pn.Flash()
	if msg == "" {
		return
	}
	w := width(msg) + 10
	if w > Size-8 {
		w = Size - 8
	}
	x0 := (Size - w) / 2
	fill(img, image.Rect(x0, 54, x0+w, 72), color.RGBA{10, 10, 20, 235})
	rect(img, image.Rect(x0, 54, x0+w, 72), colAccent)
	text(img, x0+5, 67, colText, msg)
}

// ── drawing primitives ───────────────────────────────────────────────────

var face = basicfont.Face7x13

func text(img *image.RGBA, x, y int, col color.Color, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func width(s string) int {
	return len(s) * face.Advance
}

func fill(img *image.RGBA, r image.Rectangle, col color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

func rect(img *image.RGBA, r image.Rectangle, col color.Color) {
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), col)
	fill(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), col)
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), col)
	fill(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), col)
}

// guides draws rule-of-thirds lines over the live frame.
func guides(img *image.RGBA) {
	col := color.RGBA{255, 255, 255, 70}
	for _, x := range []int{Size / 3, 2 * Size / 3} {
		fill(img, image.Rect(x, 13, x+1, 103), col)
	}
	for _, y := range []int{13 + 30, 13 + 60} {
		fill(img, image.Rect(0, y, Size, y+1), col)
	}
}

// dim darkens the frame so page text stays readable.
func dim(img *image.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] /= 3
		img.Pix[i+1] /= 3
		img.Pix[i+2] /= 3
	}
}

func onOff(name string, on bool) string {
	if on {
		return name + " ON"
	}
	return name + " OFF"
}
