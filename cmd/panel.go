package cmd

import (
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-camera-rig/internal/display"
	"github.com/kartoza/kartoza-camera-rig/internal/hud"
	"github.com/kartoza/kartoza-camera-rig/internal/input"
	"github.com/kartoza/kartoza-camera-rig/internal/render"
)

var (
	panelFramebuffer string
	panelTerminal    bool
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Run the headless HAT panel loop",
	Long: `Run the rig against the physical panel: GPIO buttons in, SPI
framebuffer out. This is the mode the rig boots into in the field.

With --terminal the frame is painted inline in the terminal instead,
which is useful over SSH when the display is not wired up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := setupRig()
		if err != nil {
			return err
		}
		defer r.shutdown()

		sampler := input.NewSysfsSampler(nil)
		if err := sampler.Export(); err != nil {
			return fmt.Errorf("panel input: %w", err)
		}
		events := input.NewSource(sampler)

		var sink display.Sink
		if panelTerminal {
			sink = display.NewTerminal(32)
		} else {
			fb, err := display.OpenFramebuffer(panelFramebuffer)
			if err != nil {
				return err
			}
			sink = fb
		}
		defer sink.Close()

		compositor := hud.New(r.st, r.pn)
		sched := &render.Scheduler{
			Events: events.Poll,
			Handle: r.pn.Handle,
			Poll:   r.arb.Poll,
			Frame: func() *image.RGBA {
				return compositor.Render(r.src.Frame())
			},
			Show: sink.Display,
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sig
			log.Printf("[RIG] %s, shutting down", s)
			sched.Stop()
		}()

		sched.Run()
		return nil
	},
}

func init() {
	panelCmd.Flags().StringVar(&panelFramebuffer, "framebuffer", display.DefaultFramebufferDevice, "Framebuffer device for the SPI panel")
	panelCmd.Flags().BoolVar(&panelTerminal, "terminal", false, "Paint the panel inline in the terminal instead of the framebuffer")
}
