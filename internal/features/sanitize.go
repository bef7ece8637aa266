package features

import (
	"math"

	"github.com/matiaszanolli/auralis/internal/models"
)

// dimRange is the declared valid range and neutral replacement for one
// fingerprint dimension, in models.Dims order.
type dimRange struct {
	min, max, neutral float64
}

// dimRanges mirrors models.DimNames: every dimension's declared range
// and the value substituted when an extractor produces NaN/Inf. Bounds
// come straight from the doc comments on models.Fingerprint; neutral
// defaults follow the blanket rule verbatim - 0.0 for every [0,1]
// feature, 120 for tempo, -20 for lufs, 1.0 for phase_correlation (the
// mono invariant) - rather than a per-dimension guess.
var dimRanges = [25]dimRange{
	{0, 100, 0},             // sub_bass_pct
	{0, 100, 0},             // bass_pct
	{0, 100, 0},             // low_mid_pct
	{0, 100, 0},             // mid_pct
	{0, 100, 0},             // upper_mid_pct
	{0, 100, 0},             // presence_pct
	{0, 100, 0},             // air_pct
	{-70, 0, -20},           // lufs
	{0, 40, 0},              // crest_db
	{-40, 40, 0},            // bass_mid_ratio
	{40, 240, 120},          // tempo_bpm
	{0, 1, 0},               // rhythm_stability
	{0, 1, 0},               // transient_density
	{0, 1, 0},               // silence_ratio
	{0, 22050, 0},           // spectral_centroid
	{0, 22050, 0},           // spectral_rolloff
	{0, 1, 0},               // spectral_flatness
	{0, 1, 0},               // harmonic_ratio
	{0, 1, 0},               // pitch_stability
	{0, 1, 0},               // chroma_energy
	{0, 1, 0},               // dynamic_range_variation
	{0, math.MaxFloat64, 0}, // loudness_variation_std
	{0, 1, 0},               // peak_consistency
	{0, 1, 0},               // stereo_width
	{-1, 1, 1},              // phase_correlation
}

// Sanitize replaces any NaN/Inf dimension with its neutral default and
// clamps every dimension to its declared range. Every fingerprint that
// leaves the analyzer must pass through here - extractors are pure math
// and can legitimately divide by zero on edge-case input (silence,
// single-sample clips). Returns whether anything was changed; callers
// may log it, but the flag itself is never persisted.
func Sanitize(f *models.Fingerprint) bool {
	dims := f.Dims()
	changed := false

	for i := range dims {
		r := dimRanges[i]
		v := dims[i]

		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = r.neutral
			changed = true
		}
		if v < r.min {
			v = r.min
			changed = true
		}
		if v > r.max {
			v = r.max
			changed = true
		}
		dims[i] = v
	}

	version := f.FingerprintVersion
	*f = models.FromDims(dims, version)
	return changed
}
