// Package audiofile reads recordings into the 16 kHz mono float PCM whisper
// expects and writes captured buffers as wav.
package audiofile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// TargetRate is the sample rate whisper models are trained on.
const TargetRate = 16000

// pcm is decoded interleaved audio before downmix and resampling.
type pcm struct {
	samples  []float32
	rate     int
	channels int
}

type decoder func(io.ReadSeeker) (pcm, error)

var byExt = map[string]decoder{
	".wav": decodeWAV,
	".mp3": decodeMP3,
	".ogg": decodeOgg,
	".oga": decodeOgg,
}

var byMagic = map[string]decoder{
	"RIFF": decodeWAV,
	"OggS": decodeOgg,
	"ID3\x03": decodeMP3,
	"ID3\x04": decodeMP3,
}

// Read decodes the file at path to mono float32 samples at TargetRate.
// maxSamples > 0 caps the result length.
func Read(path string, maxSamples int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := pick(f, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}

	p, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	x := resampleLinear(downmix(p.samples, p.channels), p.rate, TargetRate)
	if maxSamples > 0 && len(x) > maxSamples {
		x = x[:maxSamples]
	}
	return x, nil
}

func pick(f io.ReadSeeker, ext string) (decoder, error) {
	if dec, ok := byExt[ext]; ok {
		return dec, nil
	}

	magic, _ := bufio.NewReader(f).Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if dec, ok := byMagic[string(magic)]; ok {
		return dec, nil
	}
	return nil, fmt.Errorf("unsupported format %q (wav, mp3, ogg vorbis/opus)", ext)
}

func decodeWAV(r io.ReadSeeker) (pcm, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return pcm{}, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return pcm{}, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return pcm{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}

	p := pcm{samples: intToFloat32(buf.Data, bd), rate: 44100, channels: 1}
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			p.channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			p.rate = buf.Format.SampleRate
		}
	}
	return p, nil
}

func decodeMP3(r io.ReadSeeker) (pcm, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return pcm{}, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return pcm{}, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return pcm{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always emits 16-bit stereo.
	return pcm{samples: int16ToFloat32(ints), rate: rate, channels: 2}, nil
}

// decodeOgg tries Vorbis first and falls back to Opus.
func decodeOgg(r io.ReadSeeker) (pcm, error) {
	p, verr := decodeVorbis(r)
	if verr == nil {
		return p, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return pcm{}, err
	}
	p, oerr := decodeOpus(r)
	if oerr != nil {
		return pcm{}, fmt.Errorf("ogg: not vorbis (%v) nor opus (%w)", verr, oerr)
	}
	return p, nil
}

func decodeVorbis(r io.Reader) (pcm, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return pcm{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return pcm{}, errors.New("invalid vorbis stream")
	}
	return pcm{samples: samples, rate: format.SampleRate, channels: format.Channels}, nil
}

func decodeOpus(r io.ReadSeeker) (pcm, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return pcm{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// libopusfile always decodes at 48 kHz.
	var (
		out []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			out = append(out, int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return pcm{}, err
		}
	}
	if len(out) == 0 {
		return pcm{}, errors.New("empty opus stream")
	}
	return pcm{samples: out, rate: 48000, channels: ch}, nil
}

func intToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1, 1))
	}
	return out
}

func int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	last := len(in) - 1
	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
