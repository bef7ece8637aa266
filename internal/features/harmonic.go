package features

import (
	"math"

	"github.com/matiaszanolli/auralis/internal/spectrum"
)

// medianFilterKernel is the number of frames (time axis) or bins
// (frequency axis) the HPSS median filters span. Must be odd.
const medianFilterKernel = 17

// hpss performs median-filtering harmonic/percussive source separation
// on a magnitude STFT: harmonic content is smooth along time, percussive
// content is smooth along frequency. Returns per-frame harmonic and
// percussive energy, same length as core.Frames.
func hpss(core *spectrum.Core) (harmonicEnergy, percussiveEnergy []float64) {
	n := len(core.Frames)
	if n == 0 {
		return nil, nil
	}
	numBins := core.NumBins()

	harmonicMag := medianFilterTime(core.Frames, numBins)
	percussiveMag := medianFilterFreq(core.Frames, numBins)

	harmonicEnergy = make([]float64, n)
	percussiveEnergy = make([]float64, n)

	for t := 0; t < n; t++ {
		var hSum, pSum float64
		for b := 0; b < numBins; b++ {
			h := harmonicMag[t][b]
			p := percussiveMag[t][b]
			total := h + p
			if total <= 0 {
				continue
			}
			// Wiener-style soft mask applied to the original magnitude.
			orig := core.Frames[t].Magnitudes[b]
			hSum += (h / total) * orig
			pSum += (p / total) * orig
		}
		harmonicEnergy[t] = hSum
		percussiveEnergy[t] = pSum
	}

	return harmonicEnergy, percussiveEnergy
}

// medianFilterTime median-filters each frequency bin across time.
func medianFilterTime(frames []spectrum.Frame, numBins int) [][]float64 {
	n := len(frames)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, numBins)
	}

	half := medianFilterKernel / 2
	window := make([]float64, 0, medianFilterKernel)

	for b := 0; b < numBins; b++ {
		for t := 0; t < n; t++ {
			window = window[:0]
			for k := t - half; k <= t+half; k++ {
				if k < 0 || k >= n {
					continue
				}
				window = append(window, frames[k].Magnitudes[b])
			}
			out[t][b] = median(window)
		}
	}
	return out
}

// medianFilterFreq median-filters each frame across adjacent frequency
// bins.
func medianFilterFreq(frames []spectrum.Frame, numBins int) [][]float64 {
	n := len(frames)
	out := make([][]float64, n)

	half := medianFilterKernel / 2
	window := make([]float64, 0, medianFilterKernel)

	for t := 0; t < n; t++ {
		out[t] = make([]float64, numBins)
		mags := frames[t].Magnitudes
		for b := 0; b < numBins; b++ {
			window = window[:0]
			for k := b - half; k <= b+half; k++ {
				if k < 0 || k >= numBins {
					continue
				}
				window = append(window, mags[k])
			}
			out[t][b] = median(window)
		}
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	// insertion sort: kernel windows are tiny (<= medianFilterKernel)
	for i := 1; i < len(sorted); i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// HarmonicRatio is the fraction of total HPSS energy attributed to the
// harmonic component: high for sustained tonal material, low for
// percussive/noisy material.
func HarmonicRatio(core *spectrum.Core) float64 {
	harmonic, percussive := hpss(core)
	if len(harmonic) == 0 {
		return 0
	}

	var hSum, pSum float64
	for i := range harmonic {
		hSum += harmonic[i]
		pSum += percussive[i]
	}
	total := hSum + pSum
	if total <= 0 {
		return 0
	}
	return hSum / total
}

const (
	yinWindowSeconds = 0.1
	yinMinFreq       = 50.0
	yinMaxFreq       = 1000.0
	yinThreshold     = 0.15
)

// PitchStability runs YIN pitch detection on consecutive 100ms windows
// and returns the inverse coefficient of variation of the voiced-frame
// pitches: 1.0 is a rock-steady pitch, 0.0 is wildly shifting. Silence,
// unvoiced audio and clips with fewer than two voiced windows return 0.
func PitchStability(mono []float64, sampleRate int) float64 {
	windowSize := int(yinWindowSeconds * float64(sampleRate))
	if windowSize < 2 || len(mono) < windowSize {
		return 0
	}

	var pitches []float64
	for start := 0; start+windowSize <= len(mono); start += windowSize {
		f0, voiced := yinPitch(mono[start:start+windowSize], sampleRate)
		if voiced {
			pitches = append(pitches, f0)
		}
	}

	if len(pitches) < 2 {
		return 0
	}

	mean := meanOf(pitches)
	if mean <= 0 {
		return 0
	}
	var variance float64
	for _, p := range pitches {
		d := p - mean
		variance += d * d
	}
	variance /= float64(len(pitches))
	stddev := math.Sqrt(variance)

	cv := stddev / mean
	stability := 1.0 / (1.0 + cv)
	return stability
}

// yinPitch implements the core of the YIN algorithm: a cumulative mean
// normalized difference function with absolute-threshold pitch picking.
func yinPitch(window []float64, sampleRate int) (f0 float64, voiced bool) {
	maxLag := sampleRate / int(yinMinFreq)
	minLag := sampleRate / int(yinMaxFreq)
	if maxLag >= len(window) {
		maxLag = len(window) - 1
	}
	if minLag < 1 {
		minLag = 1
	}
	if minLag >= maxLag {
		return 0, false
	}

	diff := make([]float64, maxLag+1)
	for lag := 1; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < len(window); i++ {
			d := window[i] - window[i+lag]
			sum += d * d
		}
		diff[lag] = sum
	}

	cmnd := make([]float64, maxLag+1)
	cmnd[0] = 1
	runningSum := 0.0
	for lag := 1; lag <= maxLag; lag++ {
		runningSum += diff[lag]
		if runningSum <= 0 {
			cmnd[lag] = 1
		} else {
			cmnd[lag] = diff[lag] * float64(lag) / runningSum
		}
	}

	for lag := minLag; lag <= maxLag; lag++ {
		if cmnd[lag] < yinThreshold {
			for lag+1 <= maxLag && cmnd[lag+1] < cmnd[lag] {
				lag++
			}
			if lag <= 0 {
				return 0, false
			}
			return float64(sampleRate) / float64(lag), true
		}
	}
	return 0, false
}

// chromaBins is the number of pitch classes in a standard chroma vector.
const chromaBins = 12

// ChromaEnergy summarizes tonal concentration as the fraction of total
// chroma energy held by the single dominant pitch class, averaged
// across frames: near 1.0 for a clear tonal center, near 1/12 for
// atonal/noisy material.
func ChromaEnergy(core *spectrum.Core) float64 {
	if len(core.Frames) == 0 {
		return 0
	}

	var chroma [chromaBins]float64
	for _, frame := range core.Frames {
		for bin, mag := range frame.Magnitudes {
			hz := core.BinHz(bin)
			if hz < 20 {
				continue
			}
			// Pitch class relative to C (MIDI note 0 is C-1 at 8.1758Hz).
			midi := 12*math.Log2(hz/440.0) + 69
			class := int(math.Round(midi)) % chromaBins
			if class < 0 {
				class += chromaBins
			}
			chroma[class] += mag * mag
		}
	}

	var total, peak float64
	for _, e := range chroma {
		total += e
		if e > peak {
			peak = e
		}
	}
	if total <= 0 {
		return 0
	}
	return peak / total
}
