package sample

import "github.com/viterin/vek/vek32"

// Peaks reduces the sound to at most points values for drawing a waveform:
// the sound is split into equally sized runs of frames and each value is
// the largest absolute amplitude of its run, over all channels. The number
// of points is limited to the number of frames; an empty sound gives an
// empty, non-nil slice.
func (s *Sound) Peaks(points int) []float32 {
	frames := s.Frames()
	points = min(points, frames)
	if points <= 0 {
		return []float32{}
	}
	ret := make([]float32, points)
	abs := make([]float32, 0, (frames/points+1)*s.channels)
	for i := range ret {
		start := i * frames / points * s.channels
		end := (i + 1) * frames / points * s.channels
		if end <= start {
			continue
		}
		abs = vek32.Abs_Into(abs[:end-start], s.data[start:end])
		ret[i] = vek32.Max(abs)
	}
	return ret
}

// Peaks loads the sample of a path and returns its waveform overview, see
// Sound.Peaks. A path that cannot be loaded gives nil.
func (c *Cache) Peaks(path string, points int) []float32 {
	s, err := c.Load(path)
	if err != nil {
		c.logger.Debug("no waveform", "path", path, "err", err)
		return nil
	}
	return s.Peaks(points)
}
