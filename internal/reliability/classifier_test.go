package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Fatalf("IsTransient(nil) = true, want false")
	}
	if IsTransient(errors.New("malformed request")) {
		t.Fatalf("plain error should not be transient")
	}
	if !IsTransient(&StatusError{Code: 503}) {
		t.Fatalf("status 503 should be transient")
	}
	if IsTransient(&StatusError{Code: 400}) {
		t.Fatalf("status 400 should not be transient")
	}
	wrapped := fmt.Errorf("poll music job: %w", &StatusError{Code: 429})
	if !IsTransient(wrapped) {
		t.Fatalf("wrapped status 429 should be transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should be transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatalf("context cancellation should not be transient")
	}
	var netErr net.Error = &net.DNSError{Err: "no such host", IsTemporary: true}
	if !IsTransient(fmt.Errorf("submit: %w", netErr)) {
		t.Fatalf("network error should be transient")
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
