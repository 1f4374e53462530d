package tracker

import (
	"errors"
	"math"

	"github.com/stepbox/stepbox"
)

type (
	// Volume is a level per channel of a stereo signal, in decibels.
	Volume [2]float64

	// VolumeAnalyzer measures the volume of interleaved stereo audio, in
	// decibels relative to full scale (0 dB = signal level of +-1).
	VolumeAnalyzer struct {
		Level   Volume  // current volume level of left and right channels
		Attack  float64 // attack time constant in seconds
		Release float64 // release time constant in seconds
		Min     float64 // minimum volume in decibels
		Max     float64 // maximum volume in decibels
	}

	// Meter tracks the peak and average level of the engine output, fed
	// with the buffers the engine publishes on Broker.ToMeter.
	Meter struct {
		Peak    VolumeAnalyzer
		Average VolumeAnalyzer
	}
)

var ErrNaN = errors.New("NaN detected in master output")

// Update updates the Level field, by analyzing the given buffer.
//
// Internally, it first converts the signal to decibels. The level then
// follows the decibel values with exponential smoothing, with time constant
// Attack when the value is above the current level and Release when below.
// Min and Max are hard limits to keep silence from going to -Inf.
func (v *VolumeAnalyzer) Update(buffer []float32) (err error) {
	// from https://en.wikipedia.org/wiki/Exponential_smoothing
	alphaAttack := 1 - math.Exp(-1.0/(v.Attack*stepbox.SampleRate))
	alphaRelease := 1 - math.Exp(-1.0/(v.Release*stepbox.SampleRate))
	for j := 0; j < stepbox.MixChannels; j++ {
		for i := j; i < len(buffer); i += stepbox.MixChannels {
			sample2 := float64(buffer[i]) * float64(buffer[i])
			if math.IsNaN(sample2) {
				if err == nil {
					err = ErrNaN
				}
				continue
			}
			dB := 10 * math.Log10(sample2)
			if dB < v.Min || math.IsNaN(dB) {
				dB = v.Min
			}
			if dB > v.Max {
				dB = v.Max
			}
			a := alphaAttack
			if dB < v.Level[j] {
				a = alphaRelease
			}
			v.Level[j] += (dB - v.Level[j]) * a
		}
	}
	return err
}

// NewMeter returns a meter at silence, with the usual VU time constants:
// 0.3 s for the average and a fast attack, slow release peak.
func NewMeter() *Meter {
	const minDB, maxDB = -60, 12
	silent := Volume{minDB, minDB}
	return &Meter{
		Peak:    VolumeAnalyzer{Level: silent, Attack: 1.5e-3, Release: 1.5, Min: minDB, Max: maxDB},
		Average: VolumeAnalyzer{Level: silent, Attack: 0.3, Release: 0.3, Min: minDB, Max: maxDB},
	}
}

// Update feeds one interleaved stereo buffer to both analyzers.
func (m *Meter) Update(buffer []float32) error {
	return errors.Join(m.Peak.Update(buffer), m.Average.Update(buffer))
}
