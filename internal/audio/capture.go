package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/pkg/audiofile"
)

// CaptureConfig pins everything about a turn's recording.
type CaptureConfig struct {
	Device     int
	SampleRate int
	Duration   time.Duration
	Path       string

	// DuckFactor > 0 lowers other playback streams to that fraction of their
	// volume while the microphone is open.
	DuckFactor float64
	DuckFade   time.Duration
}

// recorder is the part of *Recorder that Capturer needs.
type recorder interface {
	Record(ctx context.Context, device, sampleRate int, dur time.Duration) ([]float32, error)
}

// Capturer records one fixed-length turn and stores it as a wav file.
type Capturer struct {
	rec    recorder
	ducker *Ducker
	cfg    CaptureConfig
	log    *slog.Logger
}

func NewCapturer(rec recorder, ducker *Ducker, cfg CaptureConfig, log *slog.Logger) *Capturer {
	if log == nil {
		log = slog.Default()
	}
	return &Capturer{rec: rec, ducker: ducker, cfg: cfg, log: log}
}

// Capture records and returns the path of the written wav.
func (c *Capturer) Capture(ctx context.Context) (string, error) {
	if c.ducker != nil && c.cfg.DuckFactor > 0 {
		if err := c.ducker.DuckOthers(ctx, c.cfg.DuckFactor, c.cfg.DuckFade); err != nil {
			c.log.Debug("Ducking failed", "err", err)
		}
		defer func() {
			// the turn context may already be cancelled; restore volumes anyway
			if err := c.ducker.UnduckOthers(context.WithoutCancel(ctx), c.cfg.DuckFade); err != nil {
				c.log.Debug("Unducking failed", "err", err)
			}
		}()
	}

	c.log.Info("Recording", "seconds", c.cfg.Duration.Seconds(), "device", c.cfg.Device)

	pcm, err := c.rec.Record(ctx, c.cfg.Device, c.cfg.SampleRate, c.cfg.Duration)
	if err != nil {
		return "", err
	}
	if len(pcm) == 0 {
		return "", errNoAudio
	}

	c.log.Debug("Recorded", "samples", len(pcm), "rms", Level(pcm))

	if err := audiofile.WriteWAV(c.cfg.Path, pcm, c.cfg.SampleRate); err != nil {
		return "", err
	}
	return c.cfg.Path, nil
}
