package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cinerig.json")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("got %+v, want defaults", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cinerig.json")

	want := Settings{
		Exposure:    2000,
		Gain:        250,
		WBTemp:      6500,
		FPS:         25,
		FormatIndex: 4,
		Focus:       42,
		AutoFocus:   false,
		MicGainDB:   -6,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Errorf("round trip: got %+v, want %+v", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode %o, want 0600", info.Mode().Perm())
	}
}

func TestLoadMalformedReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cinerig.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err == nil {
		t.Error("malformed file must report an error")
	}
	if s != DefaultSettings() {
		t.Errorf("malformed file must fall back to defaults, got %+v", s)
	}
}

func TestLoadLegacyProresProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cinerig.json")
	body := `{"exposure": 800, "prores_profile": 5}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.FormatIndex != 5 {
		t.Errorf("legacy prores_profile not honored: FormatIndex=%d", s.FormatIndex)
	}
	if s.ProresProfile != nil {
		t.Error("legacy key survived the load")
	}
}

func TestLoadLegacyIgnoredWhenFormatSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cinerig.json")
	body := `{"output_format_idx": 2, "prores_profile": 5}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.FormatIndex != 2 {
		t.Errorf("explicit format index lost to legacy key: %d", s.FormatIndex)
	}
}

func TestLoadClampsFormatIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cinerig.json")
	if err := os.WriteFile(path, []byte(`{"output_format_idx": 99}`), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.FormatIndex < 0 || s.FormatIndex > 6 {
		t.Errorf("format index not clamped: %d", s.FormatIndex)
	}
}

func TestSaveIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cinerig.json")
	if err := Save(path, DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}
