package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/audio"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/bridge"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/bus"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/config"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/cue"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/notify"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/pipeline"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/playback"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/proxy"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/tts"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	os.Exit(run())
}

func run() int {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	configFile := cli.StringP("config", "c", "", "YAML config path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	if err := config.LoadEnv(*envFile); err != nil {
		log.Error("Failed to load env", "err", err)
		return 1
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Invalid configuration", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Loading STT model...")
	whisper, err := stt.NewTranscriber(cfg.STT.Model)
	if err != nil {
		log.Error("Failed to init whisper", "model", cfg.STT.Model, "err", err)
		return 1
	}
	defer whisper.Close()

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		return 1
	}
	defer rec.Close()

	agent, err := newAgent(cfg.Agent)
	if err != nil {
		log.Error("Failed to set up agent", "backend", cfg.Agent.Backend, "err", err)
		return 1
	}

	synth, err := tts.New(cfg.TTS.Engine, cfg.TTS.Voice, cfg.TTS.Bin)
	if err != nil {
		log.Error("Failed to set up tts", "err", err)
		return 1
	}

	trigger, closeCue, err := newCue(cfg.Cue)
	if err != nil {
		log.Error("Failed to set up cue", "mode", cfg.Cue.Mode, "err", err)
		return 1
	}
	defer closeCue()

	st := pipeline.Stages{
		Cue:        trigger,
		Capture:    newCapturer(rec, cfg),
		Transcribe: &whisperSTT{t: whisper, opt: stt.Options{Language: cfg.STT.Language, BeamSize: cfg.STT.BeamSize, Threads: cfg.STT.Threads}},
		Agent:      agent,
		Synthesize: synth,
		Play:       playback.New(log.Default()),
	}
	if cfg.Cue.Beep != "" {
		st.Listening = func() error { return notify.Beep(cfg.Cue.Beep) }
	}
	if cfg.Bus.URL != "" {
		b, err := bus.Dial(ctx, cfg.Bus.URL, cfg.Bus.Name)
		if err != nil {
			log.Warn("Bus unavailable, continuing without events", "url", cfg.Bus.URL, "err", err)
		} else {
			defer b.Close()
			st.Events = b
		}
	}

	p := pipeline.New(pipeline.Config{
		SessionID:     cfg.Agent.SessionID,
		MaxReplyChars: cfg.TTS.MaxChars,
		ReplyPath:     cfg.Files.Reply,
	}, st, os.Stdout, log.Default())

	fmt.Println("Ready.")
	p.Run(ctx)
	return 0
}

func newAgent(cfg config.Agent) (bridge.Invoker, error) {
	if cfg.Backend != config.BackendOpenAI {
		return bridge.NewShell(bridge.Config{
			Distro:     cfg.Distro,
			User:       cfg.User,
			Runtime:    cfg.Runtime,
			EntryPoint: cfg.EntryPoint,
			Launcher:   cfg.Launcher,
			Timeout:    cfg.Timeout,
		}), nil
	}

	oc := bridge.OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}
	if cfg.Proxy != "" {
		client, err := proxy.NewSocksClient(cfg.Proxy, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		oc.HTTPClient = client
		log.Debug("Using socks proxy", "proxy", cfg.Proxy)
	}
	return bridge.NewOpenAI(oc), nil
}

func newCue(cfg config.Cue) (pipeline.Cue, func(), error) {
	if cfg.Mode == config.CueSocket {
		s, err := cue.ListenSocket(cfg.Socket)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Waiting for triggers", "socket", cfg.Socket)
		return s, func() { s.Close() }, nil
	}
	return cue.NewKeyboard(os.Stdin, os.Stdout, "\nPress Enter to speak (Ctrl+C to quit)... "), func() {}, nil
}

func newCapturer(rec *audio.Recorder, cfg config.Config) *audio.Capturer {
	cc := audio.CaptureConfig{
		Device:     cfg.Audio.Device,
		SampleRate: cfg.Audio.SampleRate,
		Duration:   cfg.Audio.Duration,
		Path:       cfg.Files.Capture,
	}

	var ducker *audio.Ducker
	if cfg.Audio.Duck {
		ducker = audio.NewDucker(cfg.Audio.SelfNames, cfg.Audio.DuckMinVolume)
		cc.DuckFactor = cfg.Audio.DuckFactor
		cc.DuckFade = cfg.Audio.DuckFade
	}
	return audio.NewCapturer(rec, ducker, cc, log.Default())
}

// whisperSTT binds decoding options to a loaded model.
type whisperSTT struct {
	t   *stt.Transcriber
	opt stt.Options
}

func (w *whisperSTT) Transcribe(ctx context.Context, wavPath string) (string, error) {
	res, err := w.t.TranscribeFile(ctx, wavPath, w.opt)
	if err != nil {
		return "", err
	}
	log.Debug("Transcribed", "language", res.Language, "segments", len(res.Segments))
	return res.Text, nil
}
