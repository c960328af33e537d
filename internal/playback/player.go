// Package playback plays a synthesized reply on the local machine.
package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Player tries, in order: ffplay, the in-process mp3 speaker, and the OS
// default handler. Failures are logged and swallowed.
type Player struct {
	log *slog.Logger

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	start    func(name string, args ...string) error
	speak    func(ctx context.Context, path string) error
	goos     string
}

func New(log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	return &Player{
		log:      log,
		lookPath: exec.LookPath,
		run:      runQuiet,
		start:    startDetached,
		speak:    playMP3,
		goos:     runtime.GOOS,
	}
}

// Play blocks until ffplay or the speaker finishes; the OS handler is only
// started. Once ffplay is found it is the only player tried, and nothing is
// started after ctx is done.
func (p *Player) Play(ctx context.Context, path string) {
	if ff, err := p.lookPath("ffplay"); err == nil {
		if err := p.run(ctx, ff, "-nodisp", "-autoexit", "-loglevel", "error", path); err != nil {
			p.log.Debug("Playback failed", "kind", "playback", "player", "ffplay", "err", err)
		}
		return
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		err := p.speak(ctx, path)
		if err == nil {
			return
		}
		p.log.Debug("Playback failed", "kind", "playback", "player", "speaker", "err", err)
	}

	if ctx.Err() != nil {
		return
	}

	name, args := p.opener(path)
	if err := p.start(name, args...); err != nil {
		p.log.Debug("Playback failed", "kind", "playback", "player", name, "err", err)
	}
}

// opener is the command that hands path to the OS default application.
func (p *Player) opener(path string) (string, []string) {
	switch p.goos {
	case "windows":
		quoted := strings.ReplaceAll(path, "'", "''")
		return "powershell", []string{"-NoProfile", "-Command", fmt.Sprintf("Start-Process '%s'", quoted)}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

func runQuiet(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

func playMP3(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return err
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
