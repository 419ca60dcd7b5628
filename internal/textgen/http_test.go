package textgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okubo-r/seika/internal/reliability"
)

func TestHTTPGeneratorParsesJSONText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"generated lyrics"}`))
	}))
	defer ts.Close()

	g := NewHTTPGenerator(ts.URL, 0)
	text, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "generated lyrics" {
		t.Fatalf("text = %q, want %q", text, "generated lyrics")
	}
}

func TestHTTPGeneratorAcceptsPlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("raw lyric lines"))
	}))
	defer ts.Close()

	g := NewHTTPGenerator(ts.URL, 0)
	text, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "raw lyric lines" {
		t.Fatalf("text = %q, want %q", text, "raw lyric lines")
	}
}

func TestHTTPGeneratorSurfacesStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	g := NewHTTPGenerator(ts.URL, 0)
	_, err := g.Generate(context.Background(), "prompt")
	var statusErr *reliability.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *reliability.StatusError", err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Fatalf("Code = %d, want %d", statusErr.Code, http.StatusBadGateway)
	}
}
