package audio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/pkg/audiofile"
)

const sinkInputs = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #42
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "mina"
Sink Input #bogus
	Volume: 10%
Sink Input #43
	Driver: protocol-native.c
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(sinkInputs)
	assert.Equal(t, []streamInfo{
		{ID: 41, Volume: 80, AppName: "Firefox"},
		{ID: 42, Volume: 100, AppName: "mina"},
	}, got)

	assert.Nil(t, parseSinkInputs(""))
}

type fakePactl struct {
	mu   sync.Mutex
	list string
	sets []string
}

func (f *fakePactl) run(_ context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if args[0] == "list" {
		return []byte(f.list), nil
	}
	f.sets = append(f.sets, strings.Join(args[1:], " "))
	return nil, nil
}

func TestDucker_DuckAndRestore(t *testing.T) {
	fp := &fakePactl{list: sinkInputs}
	d := NewDucker([]string{"mina"}, 10)
	d.pactl = fp.run

	require.NoError(t, d.DuckOthers(context.Background(), 0.25, 0))
	assert.Equal(t, []string{"41 20%"}, fp.sets)

	// second duck is a no-op
	require.NoError(t, d.DuckOthers(context.Background(), 0.25, 0))
	assert.Len(t, fp.sets, 1)

	fp.list = strings.Replace(sinkInputs, "80%", "20%", 1)
	require.NoError(t, d.UnduckOthers(context.Background(), 0))
	assert.Equal(t, []string{"41 20%", "41 80%"}, fp.sets)
}

func TestDucker_MinVolume(t *testing.T) {
	fp := &fakePactl{list: sinkInputs}
	d := NewDucker(nil, 50)
	d.pactl = fp.run

	require.NoError(t, d.DuckOthers(context.Background(), 0.1, 0))
	assert.ElementsMatch(t, []string{"41 50%", "42 50%"}, fp.sets)
}

func TestDucker_Fades(t *testing.T) {
	fp := &fakePactl{list: sinkInputs}
	d := NewDucker([]string{"mina"}, 0)
	d.pactl = fp.run

	require.NoError(t, d.DuckOthers(context.Background(), 0.5, 40*time.Millisecond))
	require.Len(t, fp.sets, 5)
	assert.Equal(t, "41 80%", fp.sets[0])
	assert.Equal(t, "41 40%", fp.sets[4])
}

func TestDucker_UnduckWithoutDuck(t *testing.T) {
	d := NewDucker(nil, 0)
	d.pactl = func(context.Context, ...string) ([]byte, error) {
		return nil, errors.New("must not be called")
	}
	require.NoError(t, d.UnduckOthers(context.Background(), 0))
}

type fakeRecorder struct {
	pcm    []float32
	err    error
	calls  int
	device int
}

func (f *fakeRecorder) Record(_ context.Context, device, sampleRate int, dur time.Duration) ([]float32, error) {
	f.calls++
	f.device = device
	if f.err != nil {
		return nil, f.err
	}
	if f.pcm != nil {
		return f.pcm, nil
	}
	return make([]float32, Samples(sampleRate, dur)), nil
}

func TestCapturer_WritesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mic.wav")
	rec := &fakeRecorder{}
	c := NewCapturer(rec, nil, CaptureConfig{
		Device:     1,
		SampleRate: 16000,
		Duration:   500 * time.Millisecond,
		Path:       path,
	}, nil)

	got, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, 1, rec.device)

	pcm, err := audiofile.Read(path, 0)
	require.NoError(t, err)
	assert.Len(t, pcm, 8000)
}

func TestCapturer_RecordError(t *testing.T) {
	rec := &fakeRecorder{err: fmt.Errorf("device busy")}
	c := NewCapturer(rec, nil, CaptureConfig{SampleRate: 16000, Duration: time.Second, Path: filepath.Join(t.TempDir(), "x.wav")}, nil)

	_, err := c.Capture(context.Background())
	require.EqualError(t, err, "device busy")
}

func TestCapturer_EmptyBuffer(t *testing.T) {
	rec := &fakeRecorder{pcm: []float32{}}
	c := NewCapturer(rec, nil, CaptureConfig{SampleRate: 16000, Duration: time.Second, Path: filepath.Join(t.TempDir(), "x.wav")}, nil)

	_, err := c.Capture(context.Background())
	require.ErrorIs(t, err, errNoAudio)
}

func TestCapturer_DucksAroundRecording(t *testing.T) {
	fp := &fakePactl{list: sinkInputs}
	d := NewDucker([]string{"mina"}, 0)
	d.pactl = fp.run

	c := NewCapturer(&fakeRecorder{}, d, CaptureConfig{
		SampleRate: 16000,
		Duration:   100 * time.Millisecond,
		Path:       filepath.Join(t.TempDir(), "mic.wav"),
		DuckFactor: 0.5,
	}, nil)

	_, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"41 40%", "41 80%"}, fp.sets)
}

func TestSamplesAndLevel(t *testing.T) {
	assert.Equal(t, 128000, Samples(16000, 8*time.Second))
	assert.Equal(t, 0.0, Level(nil))
	assert.InDelta(t, 0.5, Level([]float32{0.5, -0.5, 0.5, -0.5}), 1e-9)
}
