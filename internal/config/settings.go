package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kartoza/antiox-predictor/internal/predict"
	"gopkg.in/yaml.v3"
)

const settingsFile = "settings.yaml"

// Settings is state remembered between runs
type Settings struct {
	// Endpoint is the last endpoint a prediction succeeded against
	Endpoint   string          `yaml:"endpoint,omitempty"`
	LastInputs *predict.Inputs `yaml:"last_inputs,omitempty"`
}

// SettingsPath returns the settings file location inside dataDir
func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, settingsFile)
}

// LoadSettings reads saved settings. A missing file yields empty settings.
func LoadSettings(dataDir string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(SettingsPath(dataDir))
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

// SaveSettings writes settings, creating dataDir if needed
func SaveSettings(dataDir string, s Settings) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(SettingsPath(dataDir), data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// DefaultInputs is the prefill used before any prediction has been made
func DefaultInputs() predict.Inputs {
	return predict.Inputs{R: "200", G: "150", B: "100", Brix: "12.5", Hardness: "8.3"}
}

// Prefill returns the last submitted inputs, or the defaults
func (s Settings) Prefill() predict.Inputs {
	if s.LastInputs != nil {
		return *s.LastInputs
	}
	return DefaultInputs()
}

// SettingsRecorder remembers the inputs of every successful prediction so
// the next form is prefilled with them.
type SettingsRecorder struct {
	DataDir  string
	Endpoint func() string
}

// Record saves req as the last inputs
func (r SettingsRecorder) Record(_ context.Context, req predict.Request, _ predict.Result) error {
	s, err := LoadSettings(r.DataDir)
	if err != nil {
		return err
	}
	in := req.Inputs()
	s.LastInputs = &in
	if r.Endpoint != nil {
		s.Endpoint = r.Endpoint()
	}
	return SaveSettings(r.DataDir, s)
}
