package stepbox

import "math/rand/v2"

const (
	randomizeDensity     = 0.25
	randomizeMinVelocity = 0.6
	humanizeVelocity     = 0.2 // total width of the velocity jitter, i.e. +-0.1
	humanizeMinVelocity  = 0.4
	humanizeMaxOffsetMs  = 12
)

// Randomize activates roughly a quarter of all steps and gives every step a
// velocity between 0.6 and 1.0.
func (p *Pattern) Randomize(rng *rand.Rand) {
	for i := range p.Tracks {
		t := &p.Tracks[i]
		for s := range t.Steps {
			t.Steps[s] = rng.Float64() < randomizeDensity
			t.Velocities[s] = float32(randomizeMinVelocity + rng.Float64()*(1-randomizeMinVelocity))
		}
	}
}

// Humanize nudges the velocity of active steps by up to +-0.1 (staying
// within 0.4..1) and gives them a random late timing offset of up to 12 ms.
// Inactive steps lose their offset. The swing already provides the
// systematic timing feel, so Humanize only adds the random part.
func (p *Pattern) Humanize(rng *rand.Rand) {
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if len(t.Offsets) != len(t.Steps) {
			t.Offsets = make([]float64, len(t.Steps))
		}
		for s := range t.Steps {
			if !t.Steps[s] {
				t.Offsets[s] = 0
				continue
			}
			delta := (rng.Float64() - 0.5) * humanizeVelocity
			t.Velocities[s] = float32(clamp(float64(t.Velocities[s])+delta, humanizeMinVelocity, 1))
			t.Offsets[s] = rng.Float64() * humanizeMaxOffsetMs
		}
	}
}

// Clear deactivates every step and resets velocities and timing offsets.
func (p *Pattern) Clear() {
	for i := range p.Tracks {
		t := &p.Tracks[i]
		for s := range t.Steps {
			t.Steps[s] = false
			t.Velocities[s] = 1
		}
		t.Offsets = make([]float64, len(t.Steps))
	}
}
