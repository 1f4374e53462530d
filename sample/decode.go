package sample

import (
	"fmt"
	"io"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// decodeChunk is the number of frames pulled from a decoder at a time.
const decodeChunk = 4096

// Decode reads a whole .wav or .mp3 stream and converts it to the given
// sample rate and channel count. ext is the file extension including the
// dot, compared case insensitively. Sample rate conversion is linear
// interpolation. Stereo is downmixed to mono by averaging; mono sources come
// out of the decoders as stereo with equal channels.
func Decode(r io.ReadCloser, ext string, sampleRate, channels int) (*Sound, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch strings.ToLower(ext) {
	case ".wav":
		streamer, format, err = wav.Decode(r)
	case ".mp3":
		streamer, format, err = mp3.Decode(r)
	default:
		r.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("could not decode %s: %w", ext, err)
	}
	defer streamer.Close()
	var s beep.Streamer = streamer
	if int(format.SampleRate) != sampleRate {
		s = beep.Resample(1, format.SampleRate, beep.SampleRate(sampleRate), streamer)
	}
	channels = max(channels, 1)
	data := make([]float32, 0, max(streamer.Len(), 0)*channels*sampleRate/max(int(format.SampleRate), 1)+channels)
	chunk := make([][2]float64, decodeChunk)
	for {
		n, ok := s.Stream(chunk)
		for _, frame := range chunk[:n] {
			switch channels {
			case 1:
				data = append(data, float32((frame[0]+frame[1])/2))
			default:
				data = append(data, float32(frame[0]), float32(frame[1]))
				for c := 2; c < channels; c++ {
					data = append(data, 0)
				}
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", ext, err)
	}
	return NewSound(data, sampleRate, channels), nil
}
