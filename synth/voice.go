package synth

type voice struct {
	note      int
	phaseInc  float64
	waveform  Waveform
	envelope  Envelope
	velocity  float64
	phase     float64
	pos       int
	releaseAt int // -1 while the note is held
	finished  bool
}

// reset prepares a (possibly recycled) voice for a new note. The envelope is
// captured by value, so changing the engine settings later does not affect
// voices that are already sounding.
func (v *voice) reset(note int, frequency, sampleRate float64, w Waveform, env Envelope, velocity float64) {
	*v = voice{
		note:      note,
		phaseInc:  twoPi * frequency / sampleRate,
		waveform:  w,
		envelope:  env,
		velocity:  velocity,
		releaseAt: -1,
	}
}

func (v *voice) release() {
	if v.releaseAt >= 0 {
		return
	}
	v.releaseAt = v.pos
}

func (v *voice) next() float32 {
	if v.finished {
		return 0
	}
	amplitude := v.envelope.Amplitude(v.pos, v.releaseAt)
	if amplitude <= 0 && v.releaseAt >= 0 {
		v.finished = true
		return 0
	}
	value := Oscillate(v.waveform, v.phase)
	v.phase = advancePhase(v.phase, v.phaseInc)
	v.pos++
	return float32(value * amplitude * v.velocity)
}

// render adds the voice output to buffer.
func (v *voice) render(buffer []float32) {
	for i := range buffer {
		if v.finished {
			return
		}
		buffer[i] += v.next()
	}
}
