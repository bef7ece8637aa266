package features

import "math"

// kWeight applies the ITU-R BS.1770-4 K-weighting filter: a high-shelf
// stage followed by a high-pass (RLB) stage. The biquad coefficients are
// the standard's published 48kHz values; they are not recomputed for the
// 44.1kHz rate the analyzer decodes to.
func kWeight(samples []float64) []float64 {
	// Pre-filter: high shelf, +4dB above ~1.5kHz.
	shelf := biquad(samples, 1.53512485958697, -2.69169618940638, 1.19839281085285,
		-1.69065929318241, 0.73248077421585)
	// RLB weighting: high-pass around 38Hz.
	return biquad(shelf, 1.0, -2.0, 1.0, -1.99004745483398, 0.99007225036621)
}

// biquad applies a direct-form-II transposed biquad filter with
// coefficients (b0, b1, b2, a1, a2), a1/a2 already normalized by a0.
func biquad(x []float64, b0, b1, b2, a1, a2 float64) []float64 {
	y := make([]float64, len(x))
	var z1, z2 float64
	for i, xi := range x {
		yi := b0*xi + z1
		z1 = b1*xi - a1*yi + z2
		z2 = b2*xi - a2*yi
		y[i] = yi
	}
	return y
}

// LUFS computes the ITU-R BS.1770-4 integrated loudness of mono (or
// mid-summed stereo) samples, in dB LUFS. Uses 400ms gating blocks with
// 75% overlap and the standard -70 LUFS absolute gate plus a -10 LU
// relative gate, matching the reference algorithm.
func LUFS(samples []float64, sampleRate int) float64 {
	if len(samples) == 0 {
		return -70.0
	}

	weighted := kWeight(samples)

	blockSize := sampleRate * 400 / 1000
	hopSize := blockSize / 4
	if blockSize <= 0 || hopSize <= 0 {
		return -70.0
	}

	var blockLoudness []float64
	for start := 0; start+blockSize <= len(weighted); start += hopSize {
		block := weighted[start : start+blockSize]
		meanSquare := meanSquare(block)
		if meanSquare <= 0 {
			continue
		}
		blockLoudness = append(blockLoudness, -0.691+10*math.Log10(meanSquare))
	}

	if len(blockLoudness) == 0 {
		return -70.0
	}

	// Absolute gate at -70 LUFS.
	var gated []float64
	for _, l := range blockLoudness {
		if l > -70.0 {
			gated = append(gated, l)
		}
	}
	if len(gated) == 0 {
		return -70.0
	}

	absGateMean := meanLoudness(gated)

	// Relative gate at absGateMean - 10 LU.
	relativeThreshold := absGateMean - 10.0
	var relGated []float64
	for _, l := range gated {
		if l > relativeThreshold {
			relGated = append(relGated, l)
		}
	}
	if len(relGated) == 0 {
		return absGateMean
	}

	return meanLoudness(relGated)
}

func meanSquare(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum / float64(len(samples))
}

// meanLoudness averages loudness values in the power domain, per BS.1770.
func meanLoudness(values []float64) float64 {
	var sum float64
	for _, l := range values {
		sum += math.Pow(10, (l+0.691)/10)
	}
	mean := sum / float64(len(values))
	if mean <= 0 {
		return -70.0
	}
	return -0.691 + 10*math.Log10(mean)
}

// CrestDB computes the crest factor in dB: 20*log10(peak/rms).
func CrestDB(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	peak := 0.0
	var sumSq float64
	for _, s := range samples {
		a := math.Abs(s)
		if a > peak {
			peak = a
		}
		sumSq += s * s
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms <= 0 {
		return 0
	}
	return 20 * math.Log10(peak/rms)
}

// BassMidRatio is 10*log10(E_bass/E_mid), a signed dB ratio of the energy
// in the 60-250Hz band to the 500-2000Hz band.
func BassMidRatio(bassEnergy, midEnergy float64) float64 {
	if midEnergy <= 0 {
		if bassEnergy <= 0 {
			return 0
		}
		return 40 // effectively "no mid energy", clamp handled by sanitize
	}
	if bassEnergy <= 0 {
		return -40
	}
	return 10 * math.Log10(bassEnergy/midEnergy)
}
