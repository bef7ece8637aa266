package features

import "math"

// variationWindowSeconds is the analysis window used to track how
// dynamics and loudness evolve over the track.
const variationWindowSeconds = 1.0

// windowRMS splits mono into non-overlapping windowSeconds chunks and
// returns the RMS of each.
func windowRMS(mono []float64, sampleRate int, windowSeconds float64) []float64 {
	windowSize := int(windowSeconds * float64(sampleRate))
	if windowSize < 1 {
		return nil
	}

	var out []float64
	for start := 0; start+windowSize <= len(mono); start += windowSize {
		var sumSq float64
		for _, s := range mono[start : start+windowSize] {
			sumSq += s * s
		}
		out = append(out, math.Sqrt(sumSq/float64(windowSize)))
	}
	return out
}

// DynamicRangeVariation is the coefficient of variation of per-window
// crest factor (peak/RMS, in dB), normalized to [0, 1) via cv/(1+cv):
// near 0 when a track's dynamics are consistent throughout, approaching
// 1 when it alternates sharply between compressed and dynamic passages.
func DynamicRangeVariation(mono []float64, sampleRate int) float64 {
	windowSize := int(variationWindowSeconds * float64(sampleRate))
	if windowSize < 1 || len(mono) < windowSize {
		return 0
	}

	var crestValues []float64
	for start := 0; start+windowSize <= len(mono); start += windowSize {
		window := mono[start : start+windowSize]
		crestValues = append(crestValues, CrestDB(window))
	}

	meanCrest := math.Abs(meanOf(crestValues))
	if meanCrest == 0 {
		return 0
	}
	cv := stdDev(crestValues) / meanCrest
	return cv / (1 + cv)
}

// LoudnessVariationStd is the standard deviation of per-window RMS
// loudness (in dBFS) across the track.
func LoudnessVariationStd(mono []float64, sampleRate int) float64 {
	rmsValues := windowRMS(mono, sampleRate, variationWindowSeconds)
	if len(rmsValues) == 0 {
		return 0
	}

	dbValues := make([]float64, 0, len(rmsValues))
	for _, r := range rmsValues {
		if r <= 0 {
			continue
		}
		dbValues = append(dbValues, 20*math.Log10(r))
	}
	return stdDev(dbValues)
}

// PeakConsistency is the inverse coefficient of variation of per-window
// peak amplitude: 1.0 when every window peaks at the same level, 0.0
// when peak level swings wildly between windows.
func PeakConsistency(mono []float64, sampleRate int) float64 {
	windowSize := int(variationWindowSeconds * float64(sampleRate))
	if windowSize < 1 || len(mono) < windowSize {
		return 1.0
	}

	var peaks []float64
	for start := 0; start+windowSize <= len(mono); start += windowSize {
		peak := 0.0
		for _, s := range mono[start : start+windowSize] {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
		peaks = append(peaks, peak)
	}

	mean := meanOf(peaks)
	if mean <= 0 {
		return 1.0
	}
	cv := stdDev(peaks) / mean
	consistency := 1.0 / (1.0 + cv)
	return consistency
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := meanOf(values)
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
