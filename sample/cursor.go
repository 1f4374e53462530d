package sample

import "math"

// Cursor is one playback of a Sound: a read position and the gains of the
// trigger. Cursors of the same sound share its data and never modify it.
// A Cursor is not safe for concurrent use; the mixer reading it is its only
// user once it has been added.
type Cursor struct {
	sound       *Sound
	pos         int // index into sound.data
	left, right float32
}

// PanGains returns the equal-power gains of a pan position in -1..1 (hard
// left to hard right). Out-of-range pans are clamped. left² + right² = 1 for
// every pan, and the center gives both channels 1/√2.
func PanGains(pan float32) (left, right float32) {
	p := math.Max(-1, math.Min(1, float64(pan)))
	angle := (p + 1) * math.Pi / 4
	l, r := math.Cos(angle), math.Cos(math.Pi/2-angle)
	if l < 1e-12 {
		l = 0
	}
	if r < 1e-12 {
		r = 0
	}
	return float32(l), float32(r)
}

// NewCursor starts a playback of the sound from its beginning. gain is the
// product of master volume, track volume and step velocity, clamped to
// 0..1. Pan only applies to stereo sounds; other channel counts get gain
// only.
func NewCursor(sound *Sound, gain, pan float32) *Cursor {
	gain = min(max(gain, 0), 1)
	c := &Cursor{sound: sound, left: gain, right: gain}
	if sound.channels == 2 {
		l, r := PanGains(pan)
		c.left, c.right = gain*l, gain*r
	}
	return c
}

// ReadAudio writes the next part of the sound into the buffer and returns
// the number of values written, 0 once the sound has played out. Only whole
// frames are consumed, so a buffer of odd length leaves its last value
// untouched; a truncated last frame in the data is skipped.
func (c *Cursor) ReadAudio(buffer []float32) (int, error) {
	data := c.sound.data
	ch := c.sound.channels
	left := (len(data) - c.pos) / ch
	if left <= 0 {
		c.pos = len(data)
		return 0, nil
	}
	frames := min(left, len(buffer)/ch)
	if frames == 0 {
		return 0, nil
	}
	n := frames * ch
	src := data[c.pos : c.pos+n]
	if ch == 2 {
		for i := 0; i+1 < n; i += 2 {
			buffer[i] = src[i] * c.left
			buffer[i+1] = src[i+1] * c.right
		}
	} else {
		for i, v := range src {
			buffer[i] = v * c.left
		}
	}
	c.pos += n
	return n, nil
}

// Done tells if the cursor has reached the end of the sound.
func (c *Cursor) Done() bool {
	return c.pos+c.sound.channels > len(c.sound.data)
}

// Position returns the read position in frames.
func (c *Cursor) Position() int {
	return c.pos / c.sound.channels
}
