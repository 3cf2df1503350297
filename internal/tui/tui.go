// Package tui is the terminal viewfinder: a keyboard-driven mirror of the
// physical panel for bench use without the HAT attached.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kartoza/kartoza-camera-rig/internal/grabber"
	"github.com/kartoza/kartoza-camera-rig/internal/hud"
	"github.com/kartoza/kartoza-camera-rig/internal/input"
	"github.com/kartoza/kartoza-camera-rig/internal/models"
	"github.com/kartoza/kartoza-camera-rig/internal/panel"
	"github.com/kartoza/kartoza-camera-rig/internal/recorder"
	"github.com/kartoza/kartoza-camera-rig/internal/render"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// Key bindings
type keyMap struct {
	Record    key.Binding
	PagePrev  key.Binding
	PageNext  key.Binding
	Up        key.Binding
	Down      key.Binding
	Primary   key.Binding
	Secondary key.Binding
	Center    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Record: key.NewBinding(
		key.WithKeys(" ", "enter"),
		key.WithHelp("space/enter", "record"),
	),
	PagePrev: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "prev page"),
	),
	PageNext: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next page"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "adjust up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "adjust down"),
	),
	Primary: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "toggle"),
	),
	Secondary: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "secondary"),
	),
	Center: key.NewBinding(
		key.WithKeys("tab", "x"),
		key.WithHelp("tab/x", "select"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Messages
type tickMsg time.Time
type blinkMsg struct{}

// Model is the viewfinder TUI model.
type Model struct {
	st  *state.State
	pn  *panel.Panel
	arb *recorder.Arbiter
	src *grabber.Source
	hud *hud.Compositor

	width    int
	height   int
	blinkOn  bool
	showHelp bool
	frame    string
}

// NewModel creates the viewfinder model over an already-started rig.
func NewModel(st *state.State, pn *panel.Panel, arb *recorder.Arbiter, src *grabber.Source) Model {
	return Model{
		st:      st,
		pn:      pn,
		arb:     arb,
		src:     src,
		hud:     hud.New(st, pn),
		blinkOn: true,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(render.Period, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func blinkCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return blinkMsg{}
	})
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), blinkCmd())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, keys.Record):
			m.pn.Handle(input.Event{Line: input.Key1, Kind: input.Press})
		case key.Matches(msg, keys.PagePrev):
			m.pn.Handle(input.Event{Line: input.JoyLeft, Kind: input.Press})
		case key.Matches(msg, keys.PageNext):
			m.pn.Handle(input.Event{Line: input.JoyRight, Kind: input.Press})
		case key.Matches(msg, keys.Up):
			m.pn.Handle(input.Event{Line: input.JoyUp, Kind: input.Press})
		case key.Matches(msg, keys.Down):
			m.pn.Handle(input.Event{Line: input.JoyDown, Kind: input.Press})
		case key.Matches(msg, keys.Primary):
			m.pn.Handle(input.Event{Line: input.Key2, Kind: input.Press})
		case key.Matches(msg, keys.Secondary):
			m.pn.Handle(input.Event{Line: input.Key3, Kind: input.Press})
		case key.Matches(msg, keys.Center):
			m.pn.Handle(input.Event{Line: input.JoyPress, Kind: input.Press})
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.arb.Poll()
		m.frame = RenderFrame(m.hud.Render(m.src.Frame()), 40)
		return m, tickCmd()

	case blinkMsg:
		m.blinkOn = !m.blinkOn
		return m, blinkCmd()
	}

	return m, nil
}

// View renders the viewfinder
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	snap := m.st.Snapshot()

	header := RenderHeader(m.pn.Page().String(), snap.Recording, m.blinkOn, m.st.Timecode(time.Now()))
	status := m.renderStatus(snap)
	footer := m.renderFooter()

	sections := []string{header}
	if m.frame != "" {
		sections = append(sections, m.frame)
	}
	sections = append(sections, status, footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderStatus(snap state.Snapshot) string {
	f := models.OutputFormats[snap.FormatIndex]
	freeGB, minutes := m.st.RemainingStorage()

	label := lipgloss.NewStyle().Foreground(ColorGray)
	value := lipgloss.NewStyle().Foreground(ColorWhite)

	lines := []string{
		label.Render("Format  ") + value.Render(fmt.Sprintf("%s (.%s) ~%dMbps", f.Label, f.Ext, f.EstMbps)),
		label.Render("Capture ") + value.Render(fmt.Sprintf("%s %s @ %dfps", snap.Device, models.ResolutionLabel(snap.Resolution), snap.FPS)),
		label.Render("Exposure") + value.Render(fmt.Sprintf(" %d (%.0f°)  gain %d  wb %dK", snap.Exposure, m.st.ShutterAngle(), snap.Gain, snap.WBTemp)),
		label.Render("Storage ") + value.Render(fmt.Sprintf("%.1f GB free, ~%d min  clip %04d", freeGB, minutes, snap.ClipNumber)),
		RenderLevelBar("L", snap.AudioLevels[0], snap.AudioPeaks[0], 30),
		RenderLevelBar("R", snap.AudioLevels[1], snap.AudioPeaks[1], 30),
	}
	if flash := m.pn.Flash(); flash != "" {
		lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(ColorOrange).Render("» "+flash))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	style := lipgloss.NewStyle().Foreground(ColorGray)
	if !m.showHelp {
		return style.Render("space record · ←/→ pages · ↑/↓ adjust · ? help · q quit")
	}
	bindings := []key.Binding{
		keys.Record, keys.PagePrev, keys.PageNext, keys.Up, keys.Down,
		keys.Primary, keys.Secondary, keys.Center, keys.Help, keys.Quit,
	}
	var parts []string
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return style.Render(strings.Join(parts, " · "))
}
