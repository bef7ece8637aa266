package analysisclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fingerprint", r.URL.Path)

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint64(7), req.TrackID)

		resp := response{
			TrackID: req.TrackID,
			Fingerprint: models.Fingerprint{
				LUFS:               -14,
				FingerprintVersion: models.SchemaVersion,
			},
			ProcessingTimeMs: 42,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Second, time.Second)
	fp, err := client.Analyze(context.Background(), 7, "/music/track.flac")

	require.NoError(t, err)
	assert.Equal(t, -14.0, fp.LUFS)
	assert.Equal(t, models.SchemaVersion, fp.FingerprintVersion)
}

func TestAnalyzeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Second, time.Second)
	_, err := client.Analyze(context.Background(), 1, "/music/track.flac")

	require.Error(t, err)
}

func TestHealthyCachesResult(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Second, time.Minute)

	assert.True(t, client.Healthy(context.Background()))
	assert.True(t, client.Healthy(context.Background()))
	assert.Equal(t, 1, calls, "second call should hit the cache, not the server")
}

func TestHealthyFalseOnUnreachable(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Millisecond*50, time.Millisecond*50, time.Second)
	assert.False(t, client.Healthy(context.Background()))
}
