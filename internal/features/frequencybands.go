// Package features implements the feature extractors that turn a shared
// spectrum.Core into the fixed-shape Fingerprint dimensions. Every
// extractor here is a pure function of the audio and the precomputed
// STFT - none of them re-run an FFT.
package features

import "github.com/matiaszanolli/auralis/internal/spectrum"

// band boundaries in Hz, per the seven named bands.
var bandEdges = []float64{0, 60, 250, 500, 2000, 4000, 8000, 1 << 30}

// FrequencyBands returns the percentage of total spectral energy in each
// of the seven named bands, averaged across all STFT frames. The
// percentages sum to approximately 100.
func FrequencyBands(core *spectrum.Core) (subBass, bass, lowMid, mid, upperMid, presence, air float64) {
	if len(core.Frames) == 0 {
		return
	}

	var bandEnergy [7]float64
	var total float64

	for _, frame := range core.Frames {
		for bin, mag := range frame.Magnitudes {
			energy := mag * mag
			hz := core.BinHz(bin)
			band := bandIndex(hz)
			bandEnergy[band] += energy
			total += energy
		}
	}

	if total <= 0 {
		return
	}

	pcts := [7]float64{}
	for i := range bandEnergy {
		pcts[i] = 100 * bandEnergy[i] / total
	}

	return pcts[0], pcts[1], pcts[2], pcts[3], pcts[4], pcts[5], pcts[6]
}

func bandIndex(hz float64) int {
	for i := 0; i < len(bandEdges)-1; i++ {
		if hz >= bandEdges[i] && hz < bandEdges[i+1] {
			return i
		}
	}
	return len(bandEdges) - 2
}
