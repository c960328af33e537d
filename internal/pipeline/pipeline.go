// Package pipeline drives one voice turn at a time: wait for the user, record,
// transcribe, ask the agent and speak the answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/bridge"
	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/textnorm"
)

// Cue blocks until the user asks for a turn. io.EOF ends the loop.
type Cue interface {
	Wait(ctx context.Context) error
}

// Capturer records audio and returns the path of the written WAV file.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// Transcriber returns the raw text spoken in a WAV file.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// Player plays a file. It never fails the turn.
type Player interface {
	Play(ctx context.Context, path string)
}

// Events receives turn events. Publish must not block for long.
type Events interface {
	Publish(kind, content string)
}

// Event kinds.
const (
	EventTranscript = "transcript"
	EventReply      = "reply"
	EventFailure    = "failure"
)

const DefaultMaxReplyChars = 500

type Config struct {
	SessionID string
	// MaxReplyChars limits the text handed to the synthesizer.
	MaxReplyChars int
	ReplyPath     string
}

// Stages wires the pipeline to its collaborators. Events and Listening are
// optional.
type Stages struct {
	Cue        Cue
	Capture    Capturer
	Transcribe Transcriber
	Agent      bridge.Invoker
	Synthesize Synthesizer
	Play       Player
	Events     Events
	// Listening runs right before capture, typically a short beep.
	Listening func() error
}

type Pipeline struct {
	cfg Config
	st  Stages
	out io.Writer
	log *slog.Logger
}

// New returns a pipeline printing the conversation to out.
func New(cfg Config, st Stages, out io.Writer, log *slog.Logger) *Pipeline {
	if cfg.MaxReplyChars <= 0 {
		cfg.MaxReplyChars = DefaultMaxReplyChars
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, st: st, out: out, log: log}
}

// Run loops over turns until the cue reports end of input or ctx is done.
// Turn failures, including a failing cue, are reported and never end the
// loop.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		err := p.st.Cue.Wait(ctx)
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(p.out, "\nInput stream closed. Exiting.")
			return
		case ctx.Err() != nil:
			fmt.Fprintln(p.out, "\nBye.")
			return
		case err != nil:
			p.report(&TurnError{Kind: KindUnexpected, Err: fmt.Errorf("wait for cue: %w", err)})
			continue
		}

		err = p.RunTurn(ctx)
		if ctx.Err() != nil {
			fmt.Fprintln(p.out, "\nBye.")
			return
		}
		if err != nil {
			p.report(err)
		}
	}
}

// RunTurn runs a single turn. The returned error is always a *TurnError.
func (p *Pipeline) RunTurn(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Debug("Turn panicked", "stack", string(debug.Stack()))
			err = &TurnError{Kind: KindUnexpected, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if p.st.Listening != nil {
		if err := p.st.Listening(); err != nil {
			p.log.Debug("Listening cue failed", "err", err)
		}
	}

	wav, err := p.st.Capture.Capture(ctx)
	if err != nil {
		return &TurnError{Kind: KindCapture, Err: err}
	}

	p.log.Info("Transcribing", "file", wav)
	raw, err := p.st.Transcribe.Transcribe(ctx, wav)
	if err != nil {
		return &TurnError{Kind: KindTranscription, Err: err}
	}

	text := textnorm.Clean(raw)
	if err := Gate(text); err != nil {
		return &TurnError{Kind: KindRejected, Err: err}
	}

	fmt.Fprintln(p.out, "You:", text)
	p.publish(EventTranscript, text)

	p.log.Info("Asking agent", "session", p.cfg.SessionID)
	res, err := p.st.Agent.Invoke(ctx, text, p.cfg.SessionID)
	if err != nil {
		return &TurnError{Kind: KindBridge, Err: err}
	}
	if !res.OK() {
		return &TurnError{
			Kind:   KindBridge,
			Err:    fmt.Errorf("agent exited with status %d", res.ExitCode),
			Stderr: res.Stderr,
		}
	}
	if res.Stdout == "" {
		return &TurnError{Kind: KindBridge, Err: errors.New("agent wrote nothing to stdout"), Stderr: res.Stderr}
	}

	reply, err := bridge.ParseReply(res.Stdout)
	if err != nil {
		return &TurnError{Kind: KindMalformed, Err: err, Stdout: res.Stdout, Stderr: res.Stderr}
	}

	reply = textnorm.ForSpeech(reply)
	fmt.Fprintln(p.out, "Mina:", reply)
	p.publish(EventReply, reply)

	spoken := textnorm.Truncate(reply, p.cfg.MaxReplyChars)
	if err := p.st.Synthesize.Synthesize(ctx, spoken, p.cfg.ReplyPath); err != nil {
		return &TurnError{Kind: KindSynthesis, Err: err}
	}

	p.st.Play.Play(ctx, p.cfg.ReplyPath)
	return nil
}

func (p *Pipeline) report(err error) {
	var te *TurnError
	if !errors.As(err, &te) {
		te = &TurnError{Kind: KindUnexpected, Err: err}
	}

	if te.Kind == KindRejected {
		p.log.Info(te.Err.Error())
		return
	}

	attrs := []any{"kind", te.Kind.String(), "err", te.Err}
	if te.Stdout != "" {
		attrs = append(attrs, "stdout", bridge.Snippet(te.Stdout))
	}
	if te.Stderr != "" {
		attrs = append(attrs, "stderr", bridge.Snippet(te.Stderr))
	} else if te.Kind == KindBridge || te.Kind == KindMalformed {
		attrs = append(attrs, "stderr", "(none)")
	}
	p.log.Error("Turn failed", attrs...)
	p.publish(EventFailure, te.Kind.String())
}

func (p *Pipeline) publish(kind, content string) {
	if p.st.Events != nil {
		p.st.Events.Publish(kind, content)
	}
}
