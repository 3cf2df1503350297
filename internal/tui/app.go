package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kartoza/kartoza-camera-rig/internal/grabber"
	"github.com/kartoza/kartoza-camera-rig/internal/panel"
	"github.com/kartoza/kartoza-camera-rig/internal/recorder"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// Run starts the viewfinder and blocks until the user quits.
func Run(st *state.State, pn *panel.Panel, arb *recorder.Arbiter, src *grabber.Source) error {
	p := tea.NewProgram(NewModel(st, pn, arb, src), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("viewfinder: %w", err)
	}
	return nil
}
