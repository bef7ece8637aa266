package features

import (
	"math"

	"github.com/matiaszanolli/auralis/internal/spectrum"
)

// DefaultTempoBPM is the weak prior returned when onset detection can't
// resolve a confident periodicity - short, quiet, or arrhythmic clips.
const DefaultTempoBPM = 120.0

const (
	minTempoBPM = 40.0
	maxTempoBPM = 240.0

	// a frame counts as a transient if its flux exceeds the mean flux by
	// this many standard deviations.
	transientFluxStdDevs = 1.5

	// samples at or below this absolute amplitude count as silence.
	silenceAmplitudeThreshold = 0.01
)

// onsetEnvelope is the half-wave-rectified spectral flux between
// consecutive STFT frames - a standard onset-strength signal.
func onsetEnvelope(core *spectrum.Core) []float64 {
	if len(core.Frames) < 2 {
		return nil
	}
	env := make([]float64, len(core.Frames)-1)
	for i := 1; i < len(core.Frames); i++ {
		var flux float64
		prev, cur := core.Frames[i-1].Magnitudes, core.Frames[i].Magnitudes
		for b := range cur {
			d := cur[b] - prev[b]
			if d > 0 {
				flux += d
			}
		}
		env[i-1] = flux
	}
	return env
}

// TempoBPM estimates tempo by autocorrelating the onset envelope and
// picking the strongest peak within [minTempoBPM, maxTempoBPM]. Falls
// back to DefaultTempoBPM when the envelope is too short or flat to
// yield a confident peak.
func TempoBPM(core *spectrum.Core) float64 {
	env := onsetEnvelope(core)
	if len(env) < 4 {
		return DefaultTempoBPM
	}

	hopSeconds := core.HopDuration()
	if hopSeconds <= 0 {
		return DefaultTempoBPM
	}

	minLag := int(60.0 / maxTempoBPM / hopSeconds)
	maxLag := int(60.0 / minTempoBPM / hopSeconds)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if minLag >= maxLag {
		return DefaultTempoBPM
	}

	mean := meanOf(env)
	centered := make([]float64, len(env))
	for i, v := range env {
		centered[i] = v - mean
	}

	bestLag := -1
	bestScore := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		score := autocorrAt(centered, lag)
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	if bestLag <= 0 || bestScore <= 0 {
		return DefaultTempoBPM
	}

	bpm := 60.0 / (float64(bestLag) * hopSeconds)
	if bpm < minTempoBPM || bpm > maxTempoBPM {
		return DefaultTempoBPM
	}
	return bpm
}

func autocorrAt(centered []float64, lag int) float64 {
	var sum float64
	n := len(centered) - lag
	for i := 0; i < n; i++ {
		sum += centered[i] * centered[i+lag]
	}
	return sum
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// RhythmStability is the inverse coefficient of variation of the onset
// envelope's inter-peak intervals: 1.0 is a perfectly steady pulse, 0.0
// is arrhythmic or silent.
func RhythmStability(core *spectrum.Core) float64 {
	env := onsetEnvelope(core)
	if len(env) < 4 {
		return 0
	}

	mean := meanOf(env)
	threshold := mean * 1.2

	var peaks []int
	for i := 1; i < len(env)-1; i++ {
		if env[i] > threshold && env[i] > env[i-1] && env[i] >= env[i+1] {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 2 {
		return 0
	}

	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = float64(peaks[i] - peaks[i-1])
	}

	m := meanOf(intervals)
	if m <= 0 {
		return 0
	}
	var variance float64
	for _, v := range intervals {
		d := v - m
		variance += d * d
	}
	variance /= float64(len(intervals))
	stddev := math.Sqrt(variance)

	cv := stddev / m
	stability := 1.0 - cv
	if stability < 0 {
		stability = 0
	}
	if stability > 1 {
		stability = 1
	}
	return stability
}

// TransientDensity counts STFT frames whose onset flux spikes
// transientFluxStdDevs standard deviations above the mean, converts the
// count to onsets per second, and maps that rate to [0, 1], saturating
// at 10 onsets per second.
func TransientDensity(core *spectrum.Core) float64 {
	const saturationOnsetsPerSecond = 10.0

	env := onsetEnvelope(core)
	if len(env) == 0 {
		return 0
	}

	mean := meanOf(env)
	var variance float64
	for _, v := range env {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(env))
	stddev := math.Sqrt(variance)
	if stddev <= 0 {
		return 0
	}

	threshold := mean + transientFluxStdDevs*stddev
	count := 0
	for _, v := range env {
		if v > threshold {
			count++
		}
	}

	hopSeconds := core.HopDuration()
	if hopSeconds <= 0 {
		return 0
	}
	onsetsPerSecond := float64(count) / (float64(len(env)) * hopSeconds)
	return math.Min(onsetsPerSecond/saturationOnsetsPerSecond, 1)
}

// SilenceRatio is the fraction of samples whose absolute amplitude falls
// at or below silenceAmplitudeThreshold.
func SilenceRatio(mono []float64) float64 {
	if len(mono) == 0 {
		return 1.0
	}
	silent := 0
	for _, s := range mono {
		if math.Abs(s) <= silenceAmplitudeThreshold {
			silent++
		}
	}
	return float64(silent) / float64(len(mono))
}
