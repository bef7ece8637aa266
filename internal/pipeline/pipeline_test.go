package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/logger"
	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	fp    models.Fingerprint
	err   error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string) (models.Fingerprint, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return models.Fingerprint{}, f.err
	}
	return f.fp, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRepository struct {
	mu      sync.Mutex
	upserts map[uint64]models.Fingerprint
	err     error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{upserts: make(map[uint64]models.Fingerprint)}
}

func (f *fakeRepository) Upsert(trackID uint64, fp models.Fingerprint) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[trackID] = fp
	return nil
}

func (f *fakeRepository) get(trackID uint64) (models.Fingerprint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp, ok := f.upserts[trackID]
	return fp, ok
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return path
}

func TestPoolProcessesJobSuccessfully(t *testing.T) {
	repo := newFakeRepository()
	analyzer := &fakeAnalyzer{fp: models.Fingerprint{LUFS: -14, FingerprintVersion: models.SchemaVersion}}

	pool := NewPool(Dependencies{
		Analyzer:   analyzer,
		Repository: repo,
	}, 1, 1, time.Second, 5*time.Second)
	pool.Start()
	defer pool.Shutdown(context.Background())

	path := tempAudioFile(t)
	job := models.NewJob(1, path, 0)
	require.NoError(t, pool.Enqueue(context.Background(), job))

	require.Eventually(t, func() bool {
		_, ok := repo.get(1)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	fp, ok := repo.get(1)
	require.True(t, ok)
	assert.Equal(t, -14.0, fp.LUFS)
	assert.Equal(t, 1, analyzer.callCount())
}

func TestEnqueueRejectsDuplicateInFlight(t *testing.T) {
	repo := newFakeRepository()
	analyzer := &fakeAnalyzer{fp: models.Fingerprint{FingerprintVersion: models.SchemaVersion}}

	// No workers started: the job stays queued and in-flight.
	pool := NewPool(Dependencies{Analyzer: analyzer, Repository: repo}, 1, 1, time.Second, time.Second)

	path := tempAudioFile(t)
	job := models.NewJob(5, path, 0)
	require.NoError(t, pool.Enqueue(context.Background(), job))

	err := pool.Enqueue(context.Background(), job)
	require.Error(t, err)
}

func TestProcessRetriesTransientPersistError(t *testing.T) {
	logger.Log = zap.NewNop()
	repo := &fakeRepository{
		upserts: make(map[uint64]models.Fingerprint),
		err:     apierrors.Persist("transient database error"),
	}
	analyzer := &fakeAnalyzer{fp: models.Fingerprint{FingerprintVersion: models.SchemaVersion}}

	pool := NewPool(Dependencies{Analyzer: analyzer, Repository: repo}, 1, 1, time.Second, 5*time.Second)
	pool.Start()
	defer pool.Shutdown(context.Background())

	path := tempAudioFile(t)
	job := models.NewJob(9, path, 0)

	require.NoError(t, pool.Enqueue(context.Background(), job))

	// The first attempt fails to persist; the retry after the 1s backoff
	// runs the analyzer a second time.
	require.Eventually(t, func() bool {
		return analyzer.callCount() >= 2
	}, 3*time.Second, 10*time.Millisecond)
}
