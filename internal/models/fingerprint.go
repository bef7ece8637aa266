// Package models defines the fixed-shape data types shared across the
// analyzer, cache, and pipeline packages.
package models

import "time"

// SchemaVersion is the current fingerprint schema version. Bump this
// whenever a dimension's meaning or computation changes; every sidecar,
// persistent cache entry, and repository row carries the version it was
// written with, and a mismatch on read is always treated as a miss.
const SchemaVersion = 1

// Fingerprint is the fixed-shape 25-dimensional acoustic summary of a
// track. Every field is always present and always finite; there is no
// optional subset. This replaces the dynamic per-feature dict the
// original analyzer used, which silently dropped columns when a feature
// extractor failed.
type Fingerprint struct {
	// Frequency band energy, as a percentage of total spectral energy.
	// The seven bands should sum to approximately 100.
	SubBassPct  float64 `json:"sub_bass_pct"`  // <60Hz
	BassPct     float64 `json:"bass_pct"`      // 60-250Hz
	LowMidPct   float64 `json:"low_mid_pct"`   // 250-500Hz
	MidPct      float64 `json:"mid_pct"`       // 500-2000Hz
	UpperMidPct float64 `json:"upper_mid_pct"` // 2000-4000Hz
	PresencePct float64 `json:"presence_pct"`  // 4000-8000Hz
	AirPct      float64 `json:"air_pct"`       // >8000Hz

	// Dynamics.
	LUFS         float64 `json:"lufs"`           // Integrated loudness, ITU-R BS.1770-4, dB LUFS
	CrestDB      float64 `json:"crest_db"`       // 20*log10(peak/rms)
	BassMidRatio float64 `json:"bass_mid_ratio"` // 10*log10(E_bass/E_mid), signed dB

	// Temporal.
	//
	// TempoBPM defaults to 120 when no reliable periodicity is found in
	// the onset envelope. That default is a convention carried over from
	// the reference analyzer, not a measurement - callers must not treat
	// it as ground truth when RhythmStability is also low.
	TempoBPM         float64 `json:"tempo_bpm"`         // 40-240
	RhythmStability  float64 `json:"rhythm_stability"`  // 0-1
	TransientDensity float64 `json:"transient_density"` // 0-1, saturates at 10 onsets/sec
	SilenceRatio     float64 `json:"silence_ratio"`     // 0-1

	// Spectral shape, averaged across STFT frames. Centroid and rolloff
	// are expressed in Hz (not normalized to Nyquist) - see SPEC_FULL.md
	// for the rationale.
	SpectralCentroid  float64 `json:"spectral_centroid"` // Hz
	SpectralRolloff   float64 `json:"spectral_rolloff"`  // Hz, 85% energy point
	SpectralFlatness  float64 `json:"spectral_flatness"` // 0-1

	// Harmonic content, derived from HPSS + pitch tracking.
	HarmonicRatio float64 `json:"harmonic_ratio"` // 0-1
	PitchStability float64 `json:"pitch_stability"` // 0-1
	ChromaEnergy  float64 `json:"chroma_energy"`   // 0-1

	// Variation across the track.
	DynamicRangeVariation float64 `json:"dynamic_range_variation"` // 0-1
	LoudnessVariationStd  float64 `json:"loudness_variation_std"`  // dB, >= 0
	PeakConsistency       float64 `json:"peak_consistency"`        // 0-1

	// Stereo image. Mono sources produce StereoWidth=0, PhaseCorrelation=1.
	StereoWidth      float64 `json:"stereo_width"`      // 0-1
	PhaseCorrelation float64 `json:"phase_correlation"` // -1 to 1

	// FingerprintVersion is the schema version this fingerprint was
	// computed against. Required; a zero value is invalid and must never
	// be persisted.
	FingerprintVersion int `json:"fingerprint_version"`
}

// Dims returns the 25 fingerprint fields in the fixed positional order
// used by the sidecar binary layout and the repository column order.
func (f *Fingerprint) Dims() [25]float64 {
	return [25]float64{
		f.SubBassPct, f.BassPct, f.LowMidPct, f.MidPct, f.UpperMidPct, f.PresencePct, f.AirPct,
		f.LUFS, f.CrestDB, f.BassMidRatio,
		f.TempoBPM, f.RhythmStability, f.TransientDensity, f.SilenceRatio,
		f.SpectralCentroid, f.SpectralRolloff, f.SpectralFlatness,
		f.HarmonicRatio, f.PitchStability, f.ChromaEnergy,
		f.DynamicRangeVariation, f.LoudnessVariationStd, f.PeakConsistency,
		f.StereoWidth, f.PhaseCorrelation,
	}
}

// FromDims populates a Fingerprint from the 25 positional dimensions,
// mirroring Dims. Used by the sidecar reader and features.Sanitize.
func FromDims(d [25]float64, version int) Fingerprint {
	return Fingerprint{
		SubBassPct: d[0], BassPct: d[1], LowMidPct: d[2], MidPct: d[3],
		UpperMidPct: d[4], PresencePct: d[5], AirPct: d[6],
		LUFS: d[7], CrestDB: d[8], BassMidRatio: d[9],
		TempoBPM: d[10], RhythmStability: d[11], TransientDensity: d[12], SilenceRatio: d[13],
		SpectralCentroid: d[14], SpectralRolloff: d[15], SpectralFlatness: d[16],
		HarmonicRatio: d[17], PitchStability: d[18], ChromaEnergy: d[19],
		DynamicRangeVariation: d[20], LoudnessVariationStd: d[21], PeakConsistency: d[22],
		StereoWidth: d[23], PhaseCorrelation: d[24],
		FingerprintVersion: version,
	}
}

// DimNames is the canonical ordering of dimension names matching Dims.
var DimNames = [25]string{
	"sub_bass_pct", "bass_pct", "low_mid_pct", "mid_pct", "upper_mid_pct", "presence_pct", "air_pct",
	"lufs", "crest_db", "bass_mid_ratio",
	"tempo_bpm", "rhythm_stability", "transient_density", "silence_ratio",
	"spectral_centroid", "spectral_rolloff", "spectral_flatness",
	"harmonic_ratio", "pitch_stability", "chroma_energy",
	"dynamic_range_variation", "loudness_variation_std", "peak_consistency",
	"stereo_width", "phase_correlation",
}

// FingerprintRecord is the repository-facing row: a Fingerprint bound to
// a track identity and bookkeeping timestamps.
type FingerprintRecord struct {
	TrackID     uint64    `gorm:"primaryKey;column:track_id" json:"track_id"`
	Fingerprint           `gorm:"embedded"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName pins the GORM table name rather than relying on pluralization.
func (FingerprintRecord) TableName() string {
	return "fingerprints"
}
