package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	validBackends = []string{BackendShell, BackendOpenAI}
	validEngines  = []string{"edge-tts", "espeak-ng"}
	validCues     = []string{CueKeyboard, CueSocket}
)

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults. Environment overrides are applied before validation.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return finish(cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	applyEnv(&cfg)
	if cfg.Files.Reply == "" {
		cfg.Files.Reply = "reply.mp3"
		if cfg.TTS.Engine == "espeak-ng" {
			cfg.Files.Reply = "reply.wav"
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv loads a dotenv file into the process environment. A missing file
// is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: load env %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Agent.APIKey = v
	}
	if v := os.Getenv("BUS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("WHISPER_MODEL_PATH"); v != "" {
		cfg.STT.Model = v
	}
}

// Validate returns every problem found in cfg, joined.
func Validate(cfg Config) error {
	var errs []error

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Duration <= 0 {
		errs = append(errs, fmt.Errorf("audio.duration %s must be positive", cfg.Audio.Duration))
	}
	if cfg.Audio.Device < -1 {
		errs = append(errs, fmt.Errorf("audio.device %d is invalid; use -1 for the default input", cfg.Audio.Device))
	}
	if cfg.Audio.Duck && (cfg.Audio.DuckFactor <= 0 || cfg.Audio.DuckFactor > 1) {
		errs = append(errs, fmt.Errorf("audio.duck_factor %.2f is out of range (0, 1]", cfg.Audio.DuckFactor))
	}

	if cfg.STT.Model == "" {
		errs = append(errs, errors.New("stt.model is required"))
	}
	if cfg.STT.BeamSize < 0 {
		errs = append(errs, fmt.Errorf("stt.beam_size %d must not be negative", cfg.STT.BeamSize))
	}

	if cfg.Agent.SessionID == "" {
		errs = append(errs, errors.New("agent.session_id is required"))
	}
	if cfg.Agent.Timeout < 0 {
		errs = append(errs, fmt.Errorf("agent.timeout %s must not be negative", cfg.Agent.Timeout))
	}
	switch cfg.Agent.Backend {
	case BackendShell:
		if cfg.Agent.Runtime == "" || cfg.Agent.EntryPoint == "" {
			errs = append(errs, errors.New("agent.runtime and agent.entry_point are required for the shell backend"))
		}
		if cfg.Agent.Distro != "" && cfg.Agent.User == "" {
			errs = append(errs, errors.New("agent.user is required when agent.distro is set"))
		}
	case BackendOpenAI:
		if cfg.Agent.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY must be set for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("agent.backend %q is invalid; valid values: %s", cfg.Agent.Backend, strings.Join(validBackends, ", ")))
	}

	if !slices.Contains(validEngines, cfg.TTS.Engine) {
		errs = append(errs, fmt.Errorf("tts.engine %q is invalid; valid values: %s", cfg.TTS.Engine, strings.Join(validEngines, ", ")))
	}
	if cfg.TTS.Engine == "espeak-ng" && !strings.EqualFold(filepath.Ext(cfg.Files.Reply), ".wav") {
		errs = append(errs, fmt.Errorf("files.reply %q must be a .wav file for espeak-ng", cfg.Files.Reply))
	}
	if cfg.TTS.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("tts.max_chars %d must be positive", cfg.TTS.MaxChars))
	}

	if !slices.Contains(validCues, cfg.Cue.Mode) {
		errs = append(errs, fmt.Errorf("cue.mode %q is invalid; valid values: %s", cfg.Cue.Mode, strings.Join(validCues, ", ")))
	}

	if cfg.Files.Capture == "" {
		errs = append(errs, errors.New("files.capture is required"))
	}
	if cfg.Bus.URL != "" && !strings.HasPrefix(cfg.Bus.URL, "ws://") && !strings.HasPrefix(cfg.Bus.URL, "wss://") {
		errs = append(errs, fmt.Errorf("bus.url %q must start with ws:// or wss://", cfg.Bus.URL))
	}

	return errors.Join(errs...)
}
