package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartoza/antiox-predictor/internal/predict"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "antiox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 8080, "")
	fs.String("endpoint", predict.DefaultEndpoint, "")
	fs.String("data-dir", "", "")
	fs.Bool("headless", false, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, "data_dir: "+dataDir+"\n")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, predict.DefaultEndpoint, cfg.Endpoint)
	assert.True(t, cfg.History)
	assert.False(t, cfg.Headless)
	assert.Equal(t, filepath.Join(dataDir, "history.db"), cfg.HistoryPath())
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
endpoint: https://api.example.com/predict
data_dir: /tmp/antiox-test
history: false
`)

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://api.example.com/predict", cfg.Endpoint)
	assert.Equal(t, "/tmp/antiox-test", cfg.DataDir)
	assert.False(t, cfg.History)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "endpoint: http://file.example/predict\ndata_dir: /tmp/x\n")
	t.Setenv("ANTIOX_ENDPOINT", "http://env.example/predict")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env.example/predict", cfg.Endpoint)
}

func TestFlagsOverrideEnv(t *testing.T) {
	path := writeConfig(t, "data_dir: /tmp/x\n")
	t.Setenv("ANTIOX_PORT", "7000")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--port", "7100", "--headless"}))

	loader := NewLoader(path)
	require.NoError(t, loader.BindFlags(fs))
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Port)
	assert.True(t, cfg.Headless)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad port", "port: 70000\ndata_dir: /tmp/x\n"},
		{"relative endpoint", "endpoint: /predict\ndata_dir: /tmp/x\n"},
		{"ftp endpoint", "endpoint: ftp://host/predict\ndata_dir: /tmp/x\n"},
		{"broken yaml", "port: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.body)).Load()
			assert.Error(t, err)
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	s, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Nil(t, s.LastInputs)
	assert.Equal(t, DefaultInputs(), s.Prefill())

	in := predict.Inputs{R: "1", G: "2", B: "3", Brix: "4.5", Hardness: "6"}
	require.NoError(t, SaveSettings(dir, Settings{Endpoint: "http://x/predict", LastInputs: &in}))

	s, err = LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://x/predict", s.Endpoint)
	assert.Equal(t, in, s.Prefill())
}

func TestSettingsRecorder(t *testing.T) {
	dir := t.TempDir()
	rec := SettingsRecorder{DataDir: dir, Endpoint: func() string { return "http://svc/predict" }}

	req := predict.Request{R: 120, G: 80, B: 40, Brix: 12.5, Hardness: 7}
	require.NoError(t, rec.Record(context.Background(), req, predict.Result{Value: 1}))

	s, err := LoadSettings(dir)
	require.NoError(t, err)
	require.NotNil(t, s.LastInputs)
	assert.Equal(t, "12.5", s.LastInputs.Brix)
	assert.Equal(t, "http://svc/predict", s.Endpoint)
}
