package presence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHTTPDetectorLeaseLifecycle(t *testing.T) {
	var released atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/camera/lease":
			w.Write([]byte(`{"lease_id":"cam-1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/camera/lease/cam-1/detect":
			w.Write([]byte(`{"person_detected":true}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/camera/lease/cam-1":
			released.Store(true)
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	d := NewHTTPDetector(HTTPConfig{BaseURL: ts.URL})
	capture, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	detected, err := capture.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !detected {
		t.Fatalf("Detect() = false, want true")
	}
	if err := capture.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !released.Load() {
		t.Fatalf("camera lease was not released")
	}
}

func TestHTTPDetectorAcquireRequiresLease(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	d := NewHTTPDetector(HTTPConfig{BaseURL: ts.URL})
	if _, err := d.Acquire(context.Background()); err == nil {
		t.Fatalf("expected error when lease_id is missing")
	}
}
