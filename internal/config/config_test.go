package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "http://localhost:5001", cfg.API.BaseURL)
	assert.Equal(t, 120, cfg.API.TimeoutSeconds)

	assert.Equal(t, DeviceFFmpeg, cfg.Capture.Device)
	assert.Equal(t, "ffmpeg", cfg.Capture.FFmpeg)
	assert.Empty(t, cfg.Capture.Format)
	assert.Empty(t, cfg.Capture.Input)
	assert.Equal(t, 64<<20, cfg.Capture.MaxBytes)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, DefaultServerScore, cfg.Server.CannedScore())
	assert.NotEmpty(t, cfg.Server.Transcript)
	assert.NotEmpty(t, cfg.Server.Strengths)

	assert.Nil(t, cfg.Questions)
	assert.Empty(t, cfg.Path)
	assert.NoError(t, cfg.Validate())
}

func TestNew_DefaultsAreNotShared(t *testing.T) {
	a := New()
	a.Server.Strengths[0] = "changed"
	assert.NotEqual(t, "changed", New().Server.Strengths[0])
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, FileName, `
api:
  base_url: "https://interview.example.com"
  timeout_seconds: 30
capture:
  device: file
  file: answer.webm
  max_bytes: 1024
server:
  port: 8080
  transcript: "canned"
  score: 9
  strengths: ["a"]
  weaknesses: []
  overall: "fine"
questions:
  - "Why this team?"
  - "Describe a conflict"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, p, cfg.Path)
	assert.Equal(t, "https://interview.example.com", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
	assert.Equal(t, DeviceFile, cfg.Capture.Device)
	assert.Equal(t, "answer.webm", cfg.Capture.File)
	assert.Equal(t, "ffmpeg", cfg.Capture.FFmpeg)
	assert.Equal(t, 1024, cfg.Capture.MaxBytes)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "canned", cfg.Server.Transcript)
	assert.Equal(t, 9, cfg.Server.CannedScore())
	assert.Equal(t, []string{"a"}, cfg.Server.Strengths)
	assert.Empty(t, cfg.Server.Weaknesses)
	assert.Equal(t, "fine", cfg.Server.Overall)
	assert.Equal(t, []string{"Why this team?", "Describe a conflict"}, cfg.Questions)
}

func TestLoad_ZeroScoreOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "server:\n  score: 0\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.NotNil(t, cfg.Server.Score)
	assert.Zero(t, cfg.Server.CannedScore())
	assert.NoError(t, cfg.Validate())
}

func TestServerConfig_CannedScoreDefault(t *testing.T) {
	assert.Equal(t, DefaultServerScore, ServerConfig{}.CannedScore())
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "api:\n  base_url: http://10.0.0.2:5001\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.2:5001", cfg.API.BaseURL)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.API.TimeoutSeconds)
	assert.Equal(t, DefaultDevice, cfg.Capture.Device)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerScore, cfg.Server.CannedScore())
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
}

func TestLoad_WalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, FileName, "server:\n  port: 9000\n")

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Load(nested)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(root, FileName), cfg.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "api: [unclosed")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"relative url", "api:\n  base_url: localhost:5001\n", "base_url"},
		{"unknown device", "capture:\n  device: alsa\n", "capture.device"},
		{"file device without file", "capture:\n  device: file\n", "capture.file"},
		{"score out of range", "server:\n  score: 11\n", "server.score"},
		{"negative timeout", "api:\n  timeout_seconds: -1\n", "timeout_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, FileName, tt.content)

			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_UnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("file permissions are not enforced")
	}
	dir := t.TempDir()
	p := writeFile(t, dir, FileName, "api: {}\n")
	require.NoError(t, os.Chmod(p, 0o000))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "custom.yaml", "questions: [\"Only one\"]\n")

	cfg, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Only one"}, cfg.Questions)
	assert.Equal(t, p, cfg.Path)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateBaseURL(t *testing.T) {
	assert.NoError(t, ValidateBaseURL("http://localhost:5001"))
	assert.NoError(t, ValidateBaseURL("https://api.example.com/v1"))
	assert.Error(t, ValidateBaseURL(""))
	assert.Error(t, ValidateBaseURL("ftp://example.com"))
	assert.Error(t, ValidateBaseURL("http://"))
}
