package features

import (
	"math"

	"github.com/matiaszanolli/auralis/internal/spectrum"
)

// rolloffFraction is the proportion of total spectral energy below the
// reported rolloff frequency.
const rolloffFraction = 0.85

// SpectralCentroid is the magnitude-weighted mean frequency in Hz,
// averaged across all STFT frames - "where the brightness sits".
func SpectralCentroid(core *spectrum.Core) float64 {
	if len(core.Frames) == 0 {
		return 0
	}

	var sum float64
	for _, frame := range core.Frames {
		sum += frameCentroid(core, frame)
	}
	return sum / float64(len(core.Frames))
}

func frameCentroid(core *spectrum.Core, frame spectrum.Frame) float64 {
	var weighted, total float64
	for bin, mag := range frame.Magnitudes {
		hz := core.BinHz(bin)
		weighted += hz * mag
		total += mag
	}
	if total <= 0 {
		return 0
	}
	return weighted / total
}

// SpectralRolloff is the frequency in Hz below which rolloffFraction of
// the frame's spectral energy lies, averaged across frames.
func SpectralRolloff(core *spectrum.Core) float64 {
	if len(core.Frames) == 0 {
		return 0
	}

	var sum float64
	for _, frame := range core.Frames {
		sum += frameRolloff(core, frame)
	}
	return sum / float64(len(core.Frames))
}

func frameRolloff(core *spectrum.Core, frame spectrum.Frame) float64 {
	var total float64
	for _, mag := range frame.Magnitudes {
		total += mag * mag
	}
	if total <= 0 {
		return 0
	}

	threshold := total * rolloffFraction
	var cumulative float64
	for bin, mag := range frame.Magnitudes {
		cumulative += mag * mag
		if cumulative >= threshold {
			return core.BinHz(bin)
		}
	}
	return core.BinHz(len(frame.Magnitudes) - 1)
}

// SpectralFlatness is the ratio of the geometric mean to the arithmetic
// mean of the magnitude spectrum, averaged across frames: near 1.0 for
// noise-like signal, near 0.0 for tonal signal.
func SpectralFlatness(core *spectrum.Core) float64 {
	if len(core.Frames) == 0 {
		return 0
	}

	var sum float64
	for _, frame := range core.Frames {
		sum += frameFlatness(frame)
	}
	return sum / float64(len(core.Frames))
}

func frameFlatness(frame spectrum.Frame) float64 {
	const epsilon = 1e-12

	n := len(frame.Magnitudes)
	if n == 0 {
		return 0
	}

	var logSum, arithSum float64
	for _, mag := range frame.Magnitudes {
		m := mag + epsilon
		logSum += math.Log(m)
		arithSum += m
	}

	geoMean := math.Exp(logSum / float64(n))
	arithMean := arithSum / float64(n)
	if arithMean <= 0 {
		return 0
	}
	return geoMean / arithMean
}
