// Package config loads the voice loop configuration from YAML and the
// environment.
package config

import (
	"time"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/ipc"
)

// Agent backends.
const (
	BackendShell  = "shell"
	BackendOpenAI = "openai"
)

// Cue modes.
const (
	CueKeyboard = "keyboard"
	CueSocket   = "socket"
)

// Config is read once at startup and never modified afterwards.
type Config struct {
	Audio Audio `yaml:"audio"`
	STT   STT   `yaml:"stt"`
	Agent Agent `yaml:"agent"`
	TTS   TTS   `yaml:"tts"`
	Cue   Cue   `yaml:"cue"`
	Files Files `yaml:"files"`
	Bus   Bus   `yaml:"bus"`
}

type Audio struct {
	SampleRate int           `yaml:"sample_rate"`
	Duration   time.Duration `yaml:"duration"`
	// Device is a portaudio device index; -1 selects the default input.
	Device int `yaml:"device"`

	// Duck lowers other PulseAudio streams while recording.
	Duck          bool          `yaml:"duck"`
	DuckFactor    float64       `yaml:"duck_factor"`
	DuckFade      time.Duration `yaml:"duck_fade"`
	DuckMinVolume int           `yaml:"duck_min_volume"`
	SelfNames     []string      `yaml:"self_names"`
}

type STT struct {
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	BeamSize int    `yaml:"beam_size"`
	Threads  int    `yaml:"threads"`
}

type Agent struct {
	Backend   string `yaml:"backend"`
	SessionID string `yaml:"session_id"`

	Distro     string   `yaml:"distro"`
	User       string   `yaml:"user"`
	Runtime    string   `yaml:"runtime"`
	EntryPoint string   `yaml:"entry_point"`
	Launcher   []string `yaml:"launcher"`

	// Timeout of zero waits for the agent forever.
	Timeout time.Duration `yaml:"timeout"`

	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Proxy   string `yaml:"proxy"`
	// APIKey comes from OPENAI_API_KEY only.
	APIKey string `yaml:"-"`
}

type TTS struct {
	Engine string `yaml:"engine"`
	Voice  string `yaml:"voice"`
	Bin    string `yaml:"bin"`
	// MaxChars caps the text handed to the engine.
	MaxChars int `yaml:"max_chars"`
}

type Cue struct {
	Mode   string `yaml:"mode"`
	Socket string `yaml:"socket"`
	// Beep is an mp3 played before every recording.
	Beep string `yaml:"beep"`
}

type Files struct {
	Capture string `yaml:"capture"`
	// Reply defaults to reply.mp3, or reply.wav for espeak-ng.
	Reply string `yaml:"reply"`
}

type Bus struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// Default mirrors the constants of the Windows voice loop.
func Default() Config {
	return Config{
		Audio: Audio{
			SampleRate:    16000,
			Duration:      8 * time.Second,
			Device:        1,
			DuckFactor:    0.3,
			DuckFade:      300 * time.Millisecond,
			DuckMinVolume: 5,
		},
		STT: STT{
			Model:    "models/ggml-small.en.bin",
			Language: "en",
			BeamSize: 5,
		},
		Agent: Agent{
			Backend:    BackendShell,
			SessionID:  "voice-loop",
			Distro:     "kali-linux",
			User:       "travis",
			Runtime:    "/home/linuxbrew/.linuxbrew/bin/node",
			EntryPoint: "/home/travis/.npm-global/lib/node_modules/openclaw/openclaw.mjs",
		},
		TTS: TTS{
			Engine:   "edge-tts",
			Voice:    "en-US-AnaNeural",
			MaxChars: 500,
		},
		Cue: Cue{
			Mode:   CueKeyboard,
			Socket: ipc.DefaultSocketPath,
		},
		Files: Files{
			Capture: "mic.wav",
		},
		Bus: Bus{
			Name: "mina",
		},
	}
}
