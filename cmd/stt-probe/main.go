// stt-probe records a few seconds from the microphone, or reads a file, and
// prints what whisper heard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/audio"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/pkg/audiofile"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/pkg/stt"
)

func main() {
	model := cli.StringP("model", "m", "models/ggml-base.en.bin", "Whisper model path")
	file := cli.StringP("file", "f", "", "Transcribe this file instead of recording")
	device := cli.IntP("device", "d", 1, "Input device index, -1 for the default")
	seconds := cli.DurationP("duration", "t", 6*time.Second, "Recording length")
	list := cli.Bool("list", false, "List input devices and exit")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{Level: log.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := probe(ctx, *model, *file, *device, *seconds, *list); err != nil {
		log.Error("Probe failed", "err", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, model, file string, device int, dur time.Duration, list bool) error {
	if err := checkFlags(file, list); err != nil {
		return err
	}

	var pcm []float32
	if file == "" {
		rec := audio.NewRecorder()
		if err := rec.Init(); err != nil {
			return fmt.Errorf("init audio: %w", err)
		}
		defer rec.Close()

		if list {
			devs, err := rec.Devices()
			if err != nil {
				return err
			}
			for i, d := range devs {
				if d.MaxInputChannels > 0 {
					fmt.Printf("%2d  %s (%d ch, %.0f Hz)\n", i, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
				}
			}
			return nil
		}

		fmt.Printf("Recording %.0fs...\n", dur.Seconds())
		var err error
		pcm, err = rec.Record(ctx, device, audiofile.TargetRate, dur)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		log.Info("Recorded", "samples", len(pcm), "level", audio.Level(pcm))
	}

	t, err := stt.NewTranscriber(model)
	if err != nil {
		return err
	}
	defer t.Close()

	opt := stt.Options{Language: "en", BeamSize: 5}
	fmt.Println("Transcribing...")

	var res stt.Result
	if file != "" {
		res, err = t.TranscribeFile(ctx, file, opt)
	} else {
		res, err = t.TranscribePCM(ctx, pcm, opt)
	}
	if err != nil {
		return err
	}

	fmt.Println(heard(res.Text))
	return nil
}

func checkFlags(file string, list bool) error {
	if file != "" && list {
		return errors.New("--list and --file are mutually exclusive")
	}
	return nil
}

func heard(text string) string {
	if text == "" {
		text = "(nothing)"
	}
	return "Heard: " + text
}
