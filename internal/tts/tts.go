// Package tts renders reply text to an audio file with an external
// synthesizer and checks that the file is playable.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Engine names accepted by New.
const (
	EngineEdge   = "edge-tts"
	EngineEspeak = "espeak-ng"
)

// Synthesizer writes speech for text to outPath.
type Synthesizer struct {
	engine string
	bin    string
	voice  string
}

// New returns a synthesizer for engine. bin overrides the executable name.
func New(engine, voice, bin string) (*Synthesizer, error) {
	switch engine {
	case EngineEdge, EngineEspeak:
	default:
		return nil, fmt.Errorf("unknown tts engine %q", engine)
	}
	if bin == "" {
		bin = engine
	}
	return &Synthesizer{engine: engine, bin: bin, voice: voice}, nil
}

// Args is the command line for one synthesis.
func (s *Synthesizer) Args(text, outPath string) []string {
	switch s.engine {
	case EngineEspeak:
		args := []string{"-w", outPath}
		if s.voice != "" {
			args = append(args, "-v", s.voice)
		}
		// "--" keeps a reply starting with '-' from being read as a flag
		return append(args, "--", text)
	default:
		return []string{"--voice", s.voice, "--text", text, "--write-media", outPath}
	}
}

// Synthesize runs the engine and verifies its output. Any previous file at
// outPath is removed first, so a failed run never leaves a stale reply behind.
func (s *Synthesizer) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to say")
	}
	if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove old output: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.bin, s.Args(text, outPath)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", s.engine, err, msg)
		}
		return fmt.Errorf("%s: %w", s.engine, err)
	}

	return Verify(outPath)
}

// Verify checks that path holds a decodable, non-empty mp3 or wav.
func Verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open synthesized audio: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		dec := wav.NewDecoder(f)
		if !dec.IsValidFile() {
			return fmt.Errorf("%s: invalid wav", path)
		}
		dur, err := dec.Duration()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if dur <= 0 {
			return fmt.Errorf("%s: empty wav", path)
		}
	default:
		dec, err := mp3.NewDecoder(f)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		n, err := io.CopyN(io.Discard, dec, 4096)
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				err = errors.New("no audio frames")
			}
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
