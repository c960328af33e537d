package audiofile

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth = 16
	wavPCM      = 1
)

// WriteWAV stores mono float samples in [-1, 1] as a 16-bit PCM wav,
// replacing any existing file at path.
func WriteWAV(path string, samples []float32, rate int) (err error) {
	if rate <= 0 {
		return errors.New("sample rate must be positive")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(clamp(float64(s), -1, 1) * math.MaxInt16))
	}

	enc := wav.NewEncoder(f, rate, wavBitDepth, 1, wavPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
