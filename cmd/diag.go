package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-camera-rig/internal/config"
	"github.com/kartoza/kartoza-camera-rig/internal/v4l2"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Check required tools and dump camera controls",
	RunE: func(cmd *cobra.Command, args []string) error {
		tools := []string{"ffmpeg", "v4l2-ctl", "arecord", "notify-send"}
		fmt.Println("Tools:")
		for _, t := range tools {
			if path, err := exec.LookPath(t); err == nil {
				fmt.Printf("  %-12s %s\n", t, path)
			} else {
				fmt.Printf("  %-12s MISSING\n", t)
			}
		}

		device := deviceFlag
		if device == "" {
			device = config.DefaultDevice
		}
		fmt.Printf("\nControls (%s):\n", device)
		out, err := v4l2.ListControls(device)
		if err != nil {
			fmt.Printf("  unavailable: %v\n", err)
			return nil
		}
		fmt.Print(out)

		if r, ok := v4l2.DetectFocusRange(device); ok {
			fmt.Printf("\nFocus range: %d..%d\n", r.Min, r.Max)
		}
		return nil
	},
}
