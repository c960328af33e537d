package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/bridge"
)

type cueFunc func(ctx context.Context) error

func (f cueFunc) Wait(ctx context.Context) error { return f(ctx) }

// turns lets n turns through, then reports end of input.
func turns(n int) cueFunc {
	return func(context.Context) error {
		if n == 0 {
			return io.EOF
		}
		n--
		return nil
	}
}

type fakeCapture struct {
	path string
	err  error
}

func (f *fakeCapture) Capture(context.Context) (string, error) { return f.path, f.err }

type fakeSTT struct {
	text string
	err  error
	got  string
}

func (f *fakeSTT) Transcribe(_ context.Context, path string) (string, error) {
	f.got = path
	return f.text, f.err
}

type fakeAgent struct {
	res   bridge.Result
	err   error
	calls int
	msg   string
}

func (f *fakeAgent) Invoke(_ context.Context, message, _ string) (bridge.Result, error) {
	f.calls++
	f.msg = message
	return f.res, f.err
}

type fakeTTS struct {
	err   error
	calls int
	text  string
	path  string
}

func (f *fakeTTS) Synthesize(_ context.Context, text, outPath string) error {
	f.calls++
	f.text = text
	f.path = outPath
	return f.err
}

type fakePlayer struct{ played []string }

func (f *fakePlayer) Play(_ context.Context, path string) { f.played = append(f.played, path) }

type fakeEvents struct{ kinds []string }

func (f *fakeEvents) Publish(kind, _ string) { f.kinds = append(f.kinds, kind) }

type harness struct {
	capture *fakeCapture
	stt     *fakeSTT
	agent   *fakeAgent
	tts     *fakeTTS
	player  *fakePlayer
	events  *fakeEvents
	out     bytes.Buffer
	logs    bytes.Buffer
}

func newHarness(transcript, stdout string) *harness {
	return &harness{
		capture: &fakeCapture{path: "mic.wav"},
		stt:     &fakeSTT{text: transcript},
		agent:   &fakeAgent{res: bridge.Result{Stdout: stdout}},
		tts:     &fakeTTS{},
		player:  &fakePlayer{},
		events:  &fakeEvents{},
	}
}

func (h *harness) pipeline(cue Cue) *Pipeline {
	log := slog.New(slog.NewTextHandler(&h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(Config{SessionID: "voice-loop", ReplyPath: "reply.mp3"}, Stages{
		Cue:        cue,
		Capture:    h.capture,
		Transcribe: h.stt,
		Agent:      h.agent,
		Synthesize: h.tts,
		Play:       h.player,
		Events:     h.events,
	}, &h.out, log)
}

func envelope(t *testing.T, text string) string {
	t.Helper()
	s, err := bridge.Render(text)
	require.NoError(t, err)
	return s
}

func TestGate(t *testing.T) {
	tests := []struct {
		text string
		want error
	}{
		{"", ErrEmpty},
		{"???", ErrNoise},
		{"... !!", ErrNoise},
		{"ok", ErrTooShort},
		{"turn on lights", nil},
		{"é ü", ErrNoise},
		{"2 + 2", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			err := Gate(tt.text)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunTurn_HappyPath(t *testing.T) {
	h := newHarness("  **turn   on**\nthe lights ", "")
	h.agent.res.Stdout = envelope(t, "Done — lights are on 💡 café")

	err := h.pipeline(turns(0)).RunTurn(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "mic.wav", h.stt.got)
	assert.Equal(t, "turn on the lights", h.agent.msg)
	assert.Equal(t, "Done , lights are on caf", h.tts.text)
	assert.Equal(t, "reply.mp3", h.tts.path)
	assert.Equal(t, []string{"reply.mp3"}, h.player.played)
	assert.Equal(t, []string{EventTranscript, EventReply}, h.events.kinds)
	assert.Contains(t, h.out.String(), "You: turn on the lights\n")
	assert.Contains(t, h.out.String(), "Mina: Done , lights are on caf\n")
}

func TestRunTurn_Fallback(t *testing.T) {
	h := newHarness("what time is it", `{"result":{"payloads":[]}}`)

	require.NoError(t, h.pipeline(turns(0)).RunTurn(context.Background()))
	assert.Equal(t, bridge.Fallback, h.tts.text)
}

func TestRunTurn_Rejected(t *testing.T) {
	for _, text := range []string{"", "???", "ok"} {
		h := newHarness(text, "")
		err := h.pipeline(turns(0)).RunTurn(context.Background())
		assert.Equal(t, KindRejected, KindOf(err), "transcript %q", text)
		assert.Zero(t, h.agent.calls)
	}
}

func TestRunTurn_NonZeroExitSkipsSynthesis(t *testing.T) {
	h := newHarness("turn on lights", "")
	h.agent.res = bridge.Result{ExitCode: 2, Stdout: envelope(t, "hi"), Stderr: "wsl: distro not found"}

	err := h.pipeline(turns(0)).RunTurn(context.Background())

	var te *TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindBridge, te.Kind)
	assert.Equal(t, "wsl: distro not found", te.Stderr)
	assert.Zero(t, h.tts.calls)
	assert.Empty(t, h.player.played)
}

func TestRunTurn_EmptyStdout(t *testing.T) {
	h := newHarness("turn on lights", "")

	err := h.pipeline(turns(0)).RunTurn(context.Background())
	assert.Equal(t, KindBridge, KindOf(err))
	assert.Zero(t, h.tts.calls)
}

func TestRunTurn_SpawnFailure(t *testing.T) {
	h := newHarness("turn on lights", "")
	h.agent.err = errors.New("exec: \"wsl.exe\": executable file not found")

	err := h.pipeline(turns(0)).RunTurn(context.Background())
	assert.Equal(t, KindBridge, KindOf(err))
}

func TestRun_MalformedReportedAndLoopContinues(t *testing.T) {
	h := newHarness("turn on lights", "not json")

	h.pipeline(turns(2)).Run(context.Background())

	assert.Equal(t, 2, h.agent.calls)
	assert.Zero(t, h.tts.calls)
	assert.Equal(t, 2, strings.Count(h.logs.String(), "kind=malformed"))
	assert.Contains(t, h.logs.String(), "not json")
	assert.Contains(t, h.out.String(), "Input stream closed. Exiting.")
}

func TestRunTurn_TruncatesSpokenReply(t *testing.T) {
	long := strings.Repeat("a", 600)
	h := newHarness("read me something", envelope(t, long))

	require.NoError(t, h.pipeline(turns(0)).RunTurn(context.Background()))
	assert.Equal(t, long[:500], h.tts.text)
	assert.Contains(t, h.out.String(), "Mina: "+long+"\n")
}

func TestRunTurn_SynthesisFailureSkipsPlayback(t *testing.T) {
	h := newHarness("turn on lights", "")
	h.agent.res.Stdout = envelope(t, "ok")
	h.tts.err = errors.New("edge-tts: exit status 1")

	err := h.pipeline(turns(0)).RunTurn(context.Background())
	assert.Equal(t, KindSynthesis, KindOf(err))
	assert.Empty(t, h.player.played)
}

func TestRunTurn_CaptureAndTranscriptionFailures(t *testing.T) {
	h := newHarness("", "")
	h.capture.err = errors.New("device unavailable")
	assert.Equal(t, KindCapture, KindOf(h.pipeline(turns(0)).RunTurn(context.Background())))

	h = newHarness("", "")
	h.stt.err = errors.New("model crashed")
	assert.Equal(t, KindTranscription, KindOf(h.pipeline(turns(0)).RunTurn(context.Background())))
}

type panicSTT struct{}

func (panicSTT) Transcribe(context.Context, string) (string, error) { panic("boom") }

func TestRun_PanicRecovered(t *testing.T) {
	h := newHarness("", "")
	p := h.pipeline(turns(1))
	p.st.Transcribe = panicSTT{}

	p.Run(context.Background())
	assert.Contains(t, h.logs.String(), "kind=unexpected")
	assert.Contains(t, h.logs.String(), "boom")
}

func TestRun_CancelledContextSaysBye(t *testing.T) {
	h := newHarness("turn on lights", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cue := cueFunc(func(ctx context.Context) error { return ctx.Err() })
	h.pipeline(cue).Run(ctx)
	assert.Contains(t, h.out.String(), "Bye.")
	assert.Zero(t, h.agent.calls)
}

func TestRun_CancelledMidTurn(t *testing.T) {
	h := newHarness("turn on lights", "")
	ctx, cancel := context.WithCancel(context.Background())

	p := h.pipeline(turns(5))
	p.st.Capture = captureFunc(func(ctx context.Context) (string, error) {
		cancel()
		return "", ctx.Err()
	})

	p.Run(ctx)
	assert.Contains(t, h.out.String(), "Bye.")
	assert.NotContains(t, h.logs.String(), "Turn failed")
}

type captureFunc func(ctx context.Context) (string, error)

func (f captureFunc) Capture(ctx context.Context) (string, error) { return f(ctx) }

func TestRun_CueErrorReportedAndLoopContinues(t *testing.T) {
	h := newHarness("turn on lights", `{"result":{"payloads":[{"text":"hi"}]}}`)
	waits := 0
	cue := cueFunc(func(context.Context) error {
		waits++
		switch waits {
		case 1:
			return errors.New("stdin gone")
		case 2:
			return nil
		}
		return io.EOF
	})

	h.pipeline(cue).Run(context.Background())

	assert.Equal(t, 3, waits)
	assert.Contains(t, h.logs.String(), "kind=unexpected")
	assert.Contains(t, h.logs.String(), "stdin gone")
	assert.Equal(t, 1, h.tts.calls)
	assert.Contains(t, h.out.String(), "Input stream closed. Exiting.")
}

func TestListeningFailureIgnored(t *testing.T) {
	h := newHarness("turn on lights", `{"result":{"payloads":[{"text":"hi there"}]}}`)
	p := h.pipeline(turns(0))
	p.st.Listening = func() error { return errors.New("no speaker") }

	require.NoError(t, p.RunTurn(context.Background()))
	assert.Equal(t, "hi there", h.tts.text)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
