// Package analysisclient talks to an optional remote analyzer service
// over HTTP. When one is configured and healthy, the pipeline tries it
// before local ffmpeg/CPU analysis and falls back to local analysis if
// the remote call fails. Every call is traced the same way the rest of
// the stack traces external services.
package analysisclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/metrics"
	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/matiaszanolli/auralis/internal/telemetry"
)

// Default timeouts per the remote analyzer's request contract.
const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultHealthTimeout     = 1 * time.Second
	DefaultHealthCacheTTL    = 5 * time.Second
)

// request is the body of POST /fingerprint.
type request struct {
	TrackID  uint64 `json:"track_id"`
	Filepath string `json:"filepath"`
}

// fingerprintWire mirrors models.Fingerprint's JSON shape on the wire;
// the remote analyzer owns its own FingerprintVersion field under
// "fingerprint_version", same as models.Fingerprint.
type fingerprintWire = models.Fingerprint

// response is the body of a successful POST /fingerprint.
type response struct {
	TrackID           uint64            `json:"track_id"`
	Fingerprint       fingerprintWire   `json:"fingerprint"`
	Metadata          map[string]string `json:"metadata"`
	ProcessingTimeMs  float64           `json:"processing_time_ms"`
}

// Client is an HTTP client for the remote analyzer service. Safe for
// concurrent use; the health check result is cached for the
// healthCacheTTL passed to New
// so a worker pool hammering Healthy() doesn't itself become load.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	healthTimeout  time.Duration
	healthCacheTTL time.Duration

	mu              sync.Mutex
	lastHealthCheck time.Time
	lastHealthy     bool
}

// New creates a Client against baseURL (e.g. "http://analyzer:9000").
// requestTimeout/healthTimeout/healthCacheTTL <= 0 fall back to the
// package defaults.
func New(baseURL string, requestTimeout, healthTimeout, healthCacheTTL time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	if healthCacheTTL <= 0 {
		healthCacheTTL = DefaultHealthCacheTTL
	}

	return &Client{
		baseURL: baseURL,
		httpClient: telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: "remote-analyzer",
			Timeout:     requestTimeout,
		}),
		healthTimeout:  healthTimeout,
		healthCacheTTL: healthCacheTTL,
	}
}

// Analyze asks the remote analyzer to fingerprint filepath. No
// client-level retry: a transport failure here is reported as
// apierrors.Transport and it's the caller's (the pipeline's) job to
// decide whether to retry, fall back to local analysis, or give up.
func (c *Client) Analyze(ctx context.Context, trackID uint64, filepath string) (models.Fingerprint, error) {
	ctx, span := telemetry.TraceExternalCall(ctx, telemetry.ExternalServiceCallAttrs{
		Service:    "remote-analyzer",
		Operation:  "analyze",
		ResourceID: fmt.Sprintf("%d", trackID),
	})
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		metrics.Get().AnalyzerRequestDuration.WithLabelValues("analyze", status).Observe(time.Since(start).Seconds())
		metrics.Get().AnalyzerRequestsTotal.WithLabelValues("analyze", status).Inc()
	}()

	body, err := json.Marshal(request{TrackID: trackID, Filepath: filepath})
	if err != nil {
		telemetry.RecordExternalCallError(span, err, 0, false)
		return models.Fingerprint{}, apierrors.Transport(fmt.Sprintf("failed to encode analyze request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fingerprint", bytes.NewReader(body))
	if err != nil {
		telemetry.RecordExternalCallError(span, err, 0, false)
		return models.Fingerprint{}, apierrors.Transport(fmt.Sprintf("failed to build analyze request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordExternalCallError(span, err, 0, true)
		return models.Fingerprint{}, apierrors.Transport(fmt.Sprintf("remote analyzer request failed: %v", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		telemetry.RecordExternalCallError(span, err, httpResp.StatusCode, true)
		return models.Fingerprint{}, apierrors.Transport(fmt.Sprintf("failed to read analyze response: %v", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		telemetry.RecordExternalCallError(span, fmt.Errorf("status %d", httpResp.StatusCode), httpResp.StatusCode, httpResp.StatusCode >= 500)
		return models.Fingerprint{}, apierrors.Transport(
			fmt.Sprintf("remote analyzer returned %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		telemetry.RecordExternalCallError(span, err, httpResp.StatusCode, false)
		return models.Fingerprint{}, apierrors.Transport(fmt.Sprintf("failed to decode analyze response: %v", err))
	}

	telemetry.RecordExternalCallSuccess(span, httpResp.StatusCode, int64(len(respBody)))
	status = "ok"
	return parsed.Fingerprint, nil
}

// Healthy reports whether the remote analyzer responded to GET /health
// within healthTimeout, caching the result for healthCacheTTL so the
// pipeline's per-job fallback decision doesn't itself generate load.
func (c *Client) Healthy(ctx context.Context) bool {
	c.mu.Lock()
	if time.Since(c.lastHealthCheck) < c.healthCacheTTL {
		healthy := c.lastHealthy
		c.mu.Unlock()
		return healthy
	}
	c.mu.Unlock()

	checkCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return c.recordHealth(false)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.recordHealth(false)
	}
	defer resp.Body.Close()

	return c.recordHealth(resp.StatusCode == http.StatusOK)
}

func (c *Client) recordHealth(healthy bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHealthy = healthy
	c.lastHealthCheck = time.Now()
	return healthy
}
