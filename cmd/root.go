package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	deviceFlag string
	outputDir  string
	configPath string
)

// SetVersion sets the application version (called from main)
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "kartoza-camera-rig",
	Short: "Field recorder control for UVC cameras",
	Long: `Kartoza Camera Rig turns a UVC camera and a small control panel into a
standalone field recorder.

It supports:
  - Recording to H.264, H.265 and ProRes through ffmpeg
  - Manual exposure, gain, white balance and focus over v4l2
  - A live audio meter from the camera microphone
  - A physical HAT panel (GPIO + SPI display) or a terminal viewfinder

Without a subcommand it opens the terminal viewfinder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runViewfinder()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "Video device (default: /dev/video0)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "Clip directory (default: ~/cinerig_footage)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: ~/.cinerig.json)")

	rootCmd.AddCommand(panelCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(diagCmd)
	rootCmd.AddCommand(versionCmd)
}
