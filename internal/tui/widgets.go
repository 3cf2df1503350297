package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"
)

// ========================================
// Palette
// ========================================

var (
	ColorOrange   = lipgloss.Color("#DDA036") // Primary/Active
	ColorBlue     = lipgloss.Color("#569FC6") // Secondary
	ColorGray     = lipgloss.Color("#9A9EA0") // Inactive/Subtle
	ColorWhite    = lipgloss.Color("#FFFFFF") // Text
	ColorDarkGray = lipgloss.Color("#3A3A3A") // Background
	ColorRed      = lipgloss.Color("#E95420") // Recording
	ColorGreen    = lipgloss.Color("#4CAF50") // Good levels
	ColorYellow   = lipgloss.Color("#E0C040") // Hot levels
)

// HeaderWidth is the standard width for the header
const HeaderWidth = 60

// RenderHeader renders the application header with the active page name
// and the recording status line.
func RenderHeader(page string, recording bool, blinkOn bool, timecode string) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorOrange).
		Align(lipgloss.Center).
		Width(HeaderWidth)

	dividerStyle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Width(HeaderWidth)

	statusStyle := lipgloss.NewStyle().
		Foreground(ColorWhite).
		Align(lipgloss.Center).
		Width(HeaderWidth)

	title := titleStyle.Render("Camera Rig - " + page)
	divider := dividerStyle.Render(strings.Repeat("─", HeaderWidth))

	state := "Ready"
	stateColor := ColorGray
	if recording {
		dot := "○"
		if blinkOn {
			dot = "●"
		}
		state = dot + " REC " + timecode
		stateColor = ColorRed
	}
	status := statusStyle.Render(
		lipgloss.NewStyle().Foreground(stateColor).Render(state))

	return lipgloss.JoinVertical(lipgloss.Left, title, divider, status, divider)
}

// RenderLevelBar renders a textual audio meter with green/yellow/red zones
// and a peak-hold tick.
func RenderLevelBar(label string, level, peak float64, width int) string {
	if width < 4 {
		width = 4
	}
	lw := int(level * float64(width))
	pp := int(peak * float64(width))
	var b strings.Builder
	for i := 0; i < width; i++ {
		frac := float64(i) / float64(width)
		var col lipgloss.Color
		switch {
		case frac >= 0.85:
			col = ColorRed
		case frac >= 0.6:
			col = ColorYellow
		default:
			col = ColorGreen
		}
		ch := " "
		switch {
		case i == pp && peak > 0:
			ch, col = "┃", ColorWhite
		case i < lw:
			ch = "█"
		default:
			ch, col = "·", ColorDarkGray
		}
		b.WriteString(lipgloss.NewStyle().Foreground(col).Render(ch))
	}
	return fmt.Sprintf("%s %s", label, b.String())
}

// RenderFrame converts the panel image to half-block cells so the live
// preview shows in any terminal.
func RenderFrame(img *image.RGBA, cols int) string {
	if img == nil || cols <= 0 {
		return ""
	}
	rows := cols // two pixels per cell keeps the square aspect
	small := resize.Resize(uint(cols), uint(rows), img, resize.NearestNeighbor)

	var b strings.Builder
	for y := 0; y < rows-1; y += 2 {
		for x := 0; x < cols; x++ {
			tr, tg, tb, _ := small.At(x, y).RGBA()
			br, bg, bb, _ := small.At(x, y+1).RGBA()
			st := lipgloss.NewStyle().
				Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", tr>>8, tg>>8, tb>>8))).
				Background(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", br>>8, bg>>8, bb>>8)))
			b.WriteString(st.Render("▀"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
