// Package config provides the Config struct and loader for .rehearse.yaml
// configuration files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".rehearse.yaml"

// maxWalkUp bounds how many parent directories Load searches.
const maxWalkUp = 10

// Default values. New() references them and no other code should duplicate
// them.
const (
	DefaultBaseURL        = "http://localhost:5001"
	DefaultTimeoutSeconds = 120

	DeviceFFmpeg = "ffmpeg"
	DeviceFile   = "file"

	DefaultDevice       = DeviceFFmpeg
	DefaultFFmpegBinary = "ffmpeg"
	DefaultMaxBytes     = 64 << 20

	DefaultServerPort       = 5001
	DefaultServerTranscript = "Thank you for the question. I am a software engineer with five years of experience building backend services."
	DefaultServerScore      = 7
	DefaultServerOverall    = "A clear, structured answer that would benefit from one concrete example."
)

var (
	defaultServerStrengths    = []string{"Clear structure", "Confident delivery"}
	defaultServerWeaknesses   = []string{"Few concrete examples"}
	defaultServerImprovements = []string{"Back each claim with a short story using the STAR method"}
)

// APIConfig locates the inference service.
type APIConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty" validate:"gte=0"`
}

// CaptureConfig selects and tunes the microphone.
type CaptureConfig struct {
	// Device is "ffmpeg" for the system microphone or "file" to replay a
	// recording.
	Device   string `yaml:"device,omitempty" validate:"oneof=ffmpeg file"`
	FFmpeg   string `yaml:"ffmpeg,omitempty"`
	Format   string `yaml:"format,omitempty"`
	Input    string `yaml:"input,omitempty"`
	File     string `yaml:"file,omitempty" validate:"required_if=Device file"`
	MaxBytes int    `yaml:"max_bytes,omitempty" validate:"gte=0"`
}

// ServerConfig holds the canned answers of the mock inference server.
type ServerConfig struct {
	Port         int      `yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	Transcript   string   `yaml:"transcript,omitempty"`
	Score        *int     `yaml:"score,omitempty" validate:"omitnil,gte=0,lte=10"`
	Strengths    []string `yaml:"strengths,omitempty"`
	Weaknesses   []string `yaml:"weaknesses,omitempty"`
	Improvements []string `yaml:"improvements,omitempty"`
	Overall      string   `yaml:"overall,omitempty"`
}

// CannedScore returns the configured score, or DefaultServerScore when
// none is set.
func (s ServerConfig) CannedScore() int {
	if s.Score == nil {
		return DefaultServerScore
	}
	return *s.Score
}

// Config is the top-level configuration loaded from .rehearse.yaml.
type Config struct {
	API       APIConfig     `yaml:"api,omitempty"`
	Capture   CaptureConfig `yaml:"capture,omitempty"`
	Server    ServerConfig  `yaml:"server,omitempty"`
	Questions []string      `yaml:"questions,omitempty" validate:"dive,required"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	score := DefaultServerScore
	return &Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Capture: CaptureConfig{
			Device:   DefaultDevice,
			FFmpeg:   DefaultFFmpegBinary,
			MaxBytes: DefaultMaxBytes,
		},
		Server: ServerConfig{
			Port:         DefaultServerPort,
			Transcript:   DefaultServerTranscript,
			Score:        &score,
			Strengths:    append([]string(nil), defaultServerStrengths...),
			Weaknesses:   append([]string(nil), defaultServerWeaknesses...),
			Improvements: append([]string(nil), defaultServerImprovements...),
			Overall:      DefaultServerOverall,
		},
	}
}

// Load finds .rehearse.yaml by walking up from startDir, unmarshals it and
// fills in missing fields with defaults. A missing file yields defaults
// with a nil error. Real I/O errors are returned.
func Load(startDir string) (*Config, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFile reads an explicit config file. Unlike Load, a missing file is an
// error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg := New()
	mergeConfig(cfg, &fileCfg)
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	if err := ValidateBaseURL(c.API.BaseURL); err != nil {
		return err
	}
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

var validate = newValidator()

// newValidator reports fields by their YAML path (capture.device) rather
// than their Go name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describe(fe validator.FieldError) string {
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "required_if":
		return fmt.Sprintf("%s is required when capture.device is %q", field, DeviceFile)
	case "required":
		return fmt.Sprintf("%s must not be empty", field)
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// ValidateBaseURL accepts absolute http and https URLs.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

// findConfigFile walks up from dir looking for FileName. It returns
// os.ErrNotExist when nothing is found.
func findConfigFile(dir string) (string, []byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for range maxWalkUp {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	// API
	if src.API.BaseURL != "" {
		dst.API.BaseURL = strings.TrimSpace(src.API.BaseURL)
	}
	if src.API.TimeoutSeconds != 0 {
		dst.API.TimeoutSeconds = src.API.TimeoutSeconds
	}

	// Capture
	if src.Capture.Device != "" {
		dst.Capture.Device = src.Capture.Device
	}
	if src.Capture.FFmpeg != "" {
		dst.Capture.FFmpeg = src.Capture.FFmpeg
	}
	if src.Capture.Format != "" {
		dst.Capture.Format = src.Capture.Format
	}
	if src.Capture.Input != "" {
		dst.Capture.Input = src.Capture.Input
	}
	if src.Capture.File != "" {
		dst.Capture.File = src.Capture.File
	}
	if src.Capture.MaxBytes != 0 {
		dst.Capture.MaxBytes = src.Capture.MaxBytes
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.Transcript != "" {
		dst.Server.Transcript = src.Server.Transcript
	}
	if src.Server.Score != nil {
		score := *src.Server.Score
		dst.Server.Score = &score
	}
	if src.Server.Strengths != nil {
		dst.Server.Strengths = src.Server.Strengths
	}
	if src.Server.Weaknesses != nil {
		dst.Server.Weaknesses = src.Server.Weaknesses
	}
	if src.Server.Improvements != nil {
		dst.Server.Improvements = src.Server.Improvements
	}
	if src.Server.Overall != "" {
		dst.Server.Overall = src.Server.Overall
	}

	if len(src.Questions) > 0 {
		dst.Questions = src.Questions
	}
}
