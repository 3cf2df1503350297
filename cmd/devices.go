package cmd

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-camera-rig/internal/meter"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List cameras and audio capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Cameras:")
		if out, err := exec.Command("v4l2-ctl", "--list-devices").Output(); err == nil {
			fmt.Print(string(out))
		} else {
			nodes, _ := filepath.Glob("/dev/video*")
			if len(nodes) == 0 {
				fmt.Println("  none found")
			}
			for _, n := range nodes {
				fmt.Println("  " + n)
			}
		}

		fmt.Println("\nAudio:")
		if dev := meter.DetectDevice(); dev != "" {
			fmt.Printf("  capture mic: %s\n", dev)
		} else {
			fmt.Println("  no capture mic detected")
		}
		return nil
	},
}
