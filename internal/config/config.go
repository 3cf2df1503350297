package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kartoza/kartoza-camera-rig/internal/models"
)

const (
	// ConfigFileName is the name of the configuration file
	ConfigFileName = ".cinerig.json"
	// DefaultFootageDir is the default output directory for clips
	DefaultFootageDir = "cinerig_footage"
	// DefaultDevice is the capture device used when none is configured
	DefaultDevice = "/dev/video0"
	// DefaultResolution is the capture resolution used when none is configured
	DefaultResolution = "3840x2160"
	// DefaultFPS is the capture framerate used when none is configured
	DefaultFPS = 30
)

// Settings holds the persisted numeric camera settings. The key set is kept
// stable so config files from older rig firmware keep working.
type Settings struct {
	Exposure    int  `json:"exposure"`
	Gain        int  `json:"gain"`
	WBTemp      int  `json:"wb_temp"`
	FPS         int  `json:"fps"`
	FormatIndex int  `json:"output_format_idx"`
	Focus       int  `json:"focus"`
	AutoFocus   bool `json:"auto_focus"`
	MicGainDB   int  `json:"mic_gain_db"`

	// Legacy key from before the format table existed; used as a fallback
	// for FormatIndex when loading old files.
	ProresProfile *int `json:"prores_profile,omitempty"`
}

// DefaultSettings returns the settings used on first run.
func DefaultSettings() Settings {
	return Settings{
		Exposure:    500,
		Gain:        100,
		WBTemp:      5600,
		FPS:         DefaultFPS,
		FormatIndex: models.DefaultFormatIndex,
		Focus:       128,
		AutoFocus:   true,
		MicGainDB:   0,
	}
}

// DefaultPath returns the config file path in the user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigFileName
	}
	return filepath.Join(home, ConfigFileName)
}

// DefaultOutputDir returns the default footage directory path.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFootageDir
	}
	return filepath.Join(home, DefaultFootageDir)
}

// Load loads settings from path. A missing file returns defaults; a
// malformed file is the caller's warning to log, defaults are returned.
func Load(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse config: %w", err)
	}

	if s.ProresProfile != nil && s.FormatIndex == 0 {
		s.FormatIndex = *s.ProresProfile
	}
	s.ProresProfile = nil
	s.FormatIndex = models.ClampFormatIndex(s.FormatIndex)

	return s, nil
}

// Save writes settings to path atomically with restrictive permissions.
func Save(path string, s Settings) error {
	s.ProresProfile = nil

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
