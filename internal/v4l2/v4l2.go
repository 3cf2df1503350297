// Package v4l2 drives UVC camera controls through the v4l2-ctl tool.
package v4l2

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kartoza/kartoza-camera-rig/internal/state"
)

// Control names as reported by v4l2-ctl.
const (
	CtrlExposure     = "exposure_time_absolute"
	CtrlGain         = "gain"
	CtrlWBTemp       = "white_balance_temperature"
	CtrlWBAuto       = "white_balance_temperature_auto"
	CtrlExposureAuto = "exposure_auto" // 1=manual, 3=auto
	CtrlFocusAuto    = "focus_automatic_continuous"
	CtrlFocusAbs     = "focus_absolute"
)

// Exposure-auto menu values.
const (
	ExposureManual = 1
	ExposureAuto   = 3
)

// Set writes one control value to the device.
func Set(device, control string, value int) error {
	cmd := exec.Command("v4l2-ctl",
		"--device="+device,
		fmt.Sprintf("--set-ctrl=%s=%d", control, value),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("v4l2-ctl set %s failed: %w: %s", control, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Get reads one control value from the device.
func Get(device, control string) (int, error) {
	cmd := exec.Command("v4l2-ctl",
		"--device="+device,
		"--get-ctrl="+control,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("v4l2-ctl get %s failed: %w", control, err)
	}
	return ParseControlValue(string(output))
}

// ParseControlValue extracts the integer from v4l2-ctl get output, which
// looks like "exposure_time_absolute: 500".
func ParseControlValue(output string) (int, error) {
	_, after, found := strings.Cut(output, ":")
	if !found {
		return 0, fmt.Errorf("unexpected v4l2-ctl output %q", strings.TrimSpace(output))
	}
	v, err := strconv.Atoi(strings.TrimSpace(after))
	if err != nil {
		return 0, fmt.Errorf("unexpected v4l2-ctl output %q", strings.TrimSpace(output))
	}
	return v, nil
}

// ListControls returns the raw control dump for diagnostics.
func ListControls(device string) (string, error) {
	cmd := exec.Command("v4l2-ctl", "--device="+device, "--list-ctrls-menus")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("v4l2-ctl list failed: %w", err)
	}
	return string(output), nil
}

// FocusRange holds the camera-reported focus_absolute limits.
type FocusRange struct {
	Min int
	Max int
}

// DetectFocusRange queries the device for its focus_absolute range. Cameras
// that do not expose the control return ok=false.
func DetectFocusRange(device string) (FocusRange, bool) {
	cmd := exec.Command("v4l2-ctl", "--device="+device, "--list-ctrls")
	output, err := cmd.Output()
	if err != nil {
		return FocusRange{}, false
	}
	return ParseFocusRange(string(output))
}

// ParseFocusRange scans --list-ctrls output for the focus_absolute line.
func ParseFocusRange(output string) (FocusRange, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "focus_absolute") || !strings.Contains(line, "max=") {
			continue
		}
		r := FocusRange{Max: state.FocusMax}
		for _, field := range strings.Fields(line) {
			k, v, found := strings.Cut(field, "=")
			if !found {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			switch k {
			case "min":
				r.Min = n
			case "max":
				r.Max = n
			}
		}
		return r, true
	}
	return FocusRange{}, false
}

// ApplySettings pushes the full camera state to the device. The exposure
// mode is set first so a manual exposure value is not overridden.
func ApplySettings(s *state.State) {
	dev := s.Device()

	mode := ExposureManual
	if s.AutoExp() {
		mode = ExposureAuto
	}
	setQuiet(dev, CtrlExposureAuto, mode)
	if !s.AutoExp() {
		setQuiet(dev, CtrlExposure, s.Exposure())
	}

	setQuiet(dev, CtrlGain, s.Gain())

	setQuiet(dev, CtrlWBAuto, boolToInt(s.AutoWB()))
	if !s.AutoWB() {
		setQuiet(dev, CtrlWBTemp, s.WBTemp())
	}

	setQuiet(dev, CtrlFocusAuto, boolToInt(s.AutoFocus()))
	if !s.AutoFocus() {
		setQuiet(dev, CtrlFocusAbs, s.Focus())
	}
}

// setQuiet applies a control, ignoring failures: cameras differ in which
// controls they expose and a missing one is not an error for the rig.
func setQuiet(device, control string, value int) {
	_ = Set(device, control, value)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
