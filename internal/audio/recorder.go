package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// DefaultDevice selects the host's default input device.
const DefaultDevice = -1

const frameSize = 1024

type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record captures exactly sampleRate*dur mono samples from the input device
// at index device (see Devices), or from the default device for
// DefaultDevice.
func (r *Recorder) Record(ctx context.Context, device, sampleRate int, dur time.Duration) ([]float32, error) {
	if sampleRate <= 0 || dur <= 0 {
		return nil, fmt.Errorf("invalid capture %d Hz for %s", sampleRate, dur)
	}

	dev, err := inputDevice(device)
	if err != nil {
		return nil, err
	}

	buf := make([]float32, frameSize)

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = len(buf)

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", dev.Name, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	total := Samples(sampleRate, dur)
	out := make([]float32, 0, total+frameSize)

	for len(out) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}

	return out[:total], nil
}

// Samples is the buffer length for a capture of dur at sampleRate.
func Samples(sampleRate int, dur time.Duration) int {
	return int(math.Round(float64(sampleRate) * dur.Seconds()))
}

// Devices lists every audio device portaudio knows about; the slice index is
// the device index accepted by Record.
func (r *Recorder) Devices() ([]*portaudio.DeviceInfo, error) {
	return portaudio.Devices()
}

func inputDevice(index int) (*portaudio.DeviceInfo, error) {
	if index == DefaultDevice {
		return portaudio.DefaultInputDevice()
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(devs) {
		return nil, fmt.Errorf("input device %d not found (%d devices)", index, len(devs))
	}
	if devs[index].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d %q has no input channels", index, devs[index].Name)
	}
	return devs[index], nil
}

// Level is the RMS of a buffer, used to flag silent captures.
func Level(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

var errNoAudio = errors.New("no audio recorded")
