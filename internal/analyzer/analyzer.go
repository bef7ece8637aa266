// Package analyzer orchestrates decode -> spectral analysis -> feature
// extraction -> sanitization into the single fixed-shape Fingerprint the
// rest of the system persists and caches.
package analyzer

import (
	"context"
	"fmt"

	"github.com/matiaszanolli/auralis/internal/audio"
	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/features"
	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/matiaszanolli/auralis/internal/spectrum"
)

// Analyzer runs the full local extraction pipeline against a decoded
// file on disk. An Analyzer holds no state, and each Analyze call builds
// its own decode and spectrum buffers, so one Analyzer can be shared by
// concurrent workers.
type Analyzer struct{}

// New returns a ready-to-use local Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze decodes path and extracts its Fingerprint. Returns one of the
// permanent decode errors (apierrors.UnsupportedFormat/Corrupt/IO) on
// any ffmpeg/ffprobe failure, or a permanent apierrors.Analysis if the
// decoded clip is shorter than audio.MinDurationSeconds. The returned
// Fingerprint has already been sanitized and stamped with
// models.SchemaVersion.
func (a *Analyzer) Analyze(ctx context.Context, path string) (models.Fingerprint, error) {
	decoded, err := audio.Decode(ctx, path)
	if err != nil {
		return models.Fingerprint{}, err
	}

	if decoded.Duration < audio.MinDurationSeconds {
		return models.Fingerprint{}, apierrors.Analysis(
			fmt.Sprintf("clip is %.2fs, shorter than the %.2fs minimum", decoded.Duration, audio.MinDurationSeconds))
	}

	fp := a.analyze(decoded)
	features.Sanitize(&fp)
	fp.FingerprintVersion = models.SchemaVersion
	return fp, nil
}

// analyze runs every extractor against already-decoded audio. Split out
// from Analyze so tests can exercise it directly against synthetic PCM
// without shelling out to ffmpeg.
func (a *Analyzer) analyze(decoded *audio.Audio) models.Fingerprint {
	mono := decoded.Mono()
	windowSize, hopSize := spectrum.DefaultWindowHop(decoded.SampleRate)
	core := spectrum.STFT(mono, decoded.SampleRate, windowSize, hopSize)

	subBass, bass, lowMid, mid, upperMid, presence, air := features.FrequencyBands(core)
	bassEnergy, midEnergy := bandEnergyFor(core)

	fp := models.Fingerprint{
		SubBassPct:  subBass,
		BassPct:     bass,
		LowMidPct:   lowMid,
		MidPct:      mid,
		UpperMidPct: upperMid,
		PresencePct: presence,
		AirPct:      air,

		LUFS:         features.LUFS(mono, decoded.SampleRate),
		CrestDB:      features.CrestDB(mono),
		BassMidRatio: features.BassMidRatio(bassEnergy, midEnergy),

		TempoBPM:         features.TempoBPM(core),
		RhythmStability:  features.RhythmStability(core),
		TransientDensity: features.TransientDensity(core),
		SilenceRatio:     features.SilenceRatio(mono),

		SpectralCentroid: features.SpectralCentroid(core),
		SpectralRolloff:  features.SpectralRolloff(core),
		SpectralFlatness: features.SpectralFlatness(core),

		HarmonicRatio:  features.HarmonicRatio(core),
		PitchStability: features.PitchStability(mono, decoded.SampleRate),
		ChromaEnergy:   features.ChromaEnergy(core),

		DynamicRangeVariation: features.DynamicRangeVariation(mono, decoded.SampleRate),
		LoudnessVariationStd:  features.LoudnessVariationStd(mono, decoded.SampleRate),
		PeakConsistency:       features.PeakConsistency(mono, decoded.SampleRate),
	}

	if decoded.IsStereo() {
		left, right := decoded.Channels[0], decoded.Channels[1]
		fp.StereoWidth = features.StereoWidth(left, right)
		fp.PhaseCorrelation = features.PhaseCorrelation(left, right)
	} else {
		fp.StereoWidth = 0
		fp.PhaseCorrelation = 1
	}

	return fp
}

// bandEnergyFor recomputes raw bass/mid energy for BassMidRatio.
// FrequencyBands already walked every bin once for the percentage
// breakdown; this second pass is cheap relative to the FFT itself and
// keeps FrequencyBands's signature free of an extra return value that
// only one other extractor needs.
func bandEnergyFor(core *spectrum.Core) (bassEnergy, midEnergy float64) {
	for _, frame := range core.Frames {
		for bin, mag := range frame.Magnitudes {
			hz := core.BinHz(bin)
			energy := mag * mag
			switch {
			case hz >= 60 && hz < 250:
				bassEnergy += energy
			case hz >= 500 && hz < 2000:
				midEnergy += energy
			}
		}
	}
	return bassEnergy, midEnergy
}
