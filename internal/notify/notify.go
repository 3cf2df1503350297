package notify

import (
	"fmt"
	"os/exec"
	"time"
)

// Urgency levels for notifications
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Send sends a desktop notification using notify-send
func Send(title, body string, urgency Urgency, icon string) error {
	args := []string{title, body}

	if urgency != "" {
		args = append(args, "--urgency="+string(urgency))
	}

	if icon != "" {
		args = append(args, "--icon="+icon)
	}

	cmd := exec.Command("notify-send", args...)
	return cmd.Run()
}

// Info sends an informational notification
func Info(title, body string) error {
	return Send(title, body, UrgencyNormal, "camera-video")
}

// Warning sends a warning notification
func Warning(title, body string) error {
	return Send(title, body, UrgencyLow, "dialog-warning")
}

// Error sends an error notification
func Error(title, body string) error {
	return Send(title, body, UrgencyCritical, "dialog-error")
}

// Desktop forwards recorder lifecycle events to desktop notifications.
// The zero value is ready to use.
type Desktop struct{}

func (Desktop) RecordingStarted(clip string) {
	_ = Info("Camera Rig", "Recording "+clip)
}

func (Desktop) RecordingStopped(clip string, d time.Duration) {
	_ = Info("Camera Rig", fmt.Sprintf("%s saved (%s)", clip, d.Round(time.Second)))
}

func (Desktop) RecordingFailed(reason string) {
	_ = Error("Camera Rig", "Recording failed: "+reason)
}
