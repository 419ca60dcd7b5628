// Package presence wraps the camera-based person detector. The camera is a
// shared piece of hardware: a capture lease is held for one detection
// attempt only and must be released on every exit path.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okubo-r/seika/internal/reliability"
)

// Capture is one scoped camera acquisition.
type Capture interface {
	// Detect blocks until a person is seen, the detector gives up, or ctx
	// expires.
	Detect(ctx context.Context) (bool, error)
	// Close releases the camera. Safe to call on every exit path.
	Close() error
}

// Detector hands out captures.
type Detector interface {
	Acquire(ctx context.Context) (Capture, error)
}

type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPDetector drives a camera sidecar over its lease API.
type HTTPDetector struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPDetector(cfg HTTPConfig) *HTTPDetector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPDetector{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *HTTPDetector) Acquire(ctx context.Context) (Capture, error) {
	obj, err := d.doJSON(ctx, http.MethodPost, "/v1/camera/lease", nil)
	if err != nil {
		return nil, fmt.Errorf("acquire camera: %w", err)
	}
	leaseID, _ := obj["lease_id"].(string)
	if strings.TrimSpace(leaseID) == "" {
		return nil, fmt.Errorf("acquire camera: response carried no lease_id")
	}
	return &httpCapture{detector: d, leaseID: leaseID}, nil
}

func (d *HTTPDetector) doJSON(ctx context.Context, method, path string, body io.Reader) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(d.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	res, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return nil, &reliability.StatusError{Code: res.StatusCode, Body: string(msg)}
	}
	var obj map[string]any
	if err := json.NewDecoder(res.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return obj, nil
}

type httpCapture struct {
	detector *HTTPDetector
	leaseID  string
}

func (c *httpCapture) Detect(ctx context.Context) (bool, error) {
	obj, err := c.detector.doJSON(ctx, http.MethodPost, "/v1/camera/lease/"+c.leaseID+"/detect", nil)
	if err != nil {
		return false, fmt.Errorf("detect person: %w", err)
	}
	detected, _ := obj["person_detected"].(bool)
	return detected, nil
}

func (c *httpCapture) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.detector.doJSON(ctx, http.MethodDelete, "/v1/camera/lease/"+c.leaseID, nil)
	return err
}

// MockDetector confirms presence immediately; used when no camera sidecar
// is configured.
type MockDetector struct{}

func NewMockDetector() *MockDetector { return &MockDetector{} }

func (MockDetector) Acquire(context.Context) (Capture, error) {
	return mockCapture{}, nil
}

type mockCapture struct{}

func (mockCapture) Detect(context.Context) (bool, error) { return true, nil }
func (mockCapture) Close() error                         { return nil }
