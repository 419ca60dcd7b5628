package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okubo-r/seika/internal/archive"
	"github.com/okubo-r/seika/internal/config"
	"github.com/okubo-r/seika/internal/observability"
	"github.com/okubo-r/seika/internal/protocol"
	"github.com/okubo-r/seika/internal/session"
)

func testMetrics(prefix string) *observability.Metrics {
	return observability.NewMetrics("test_" + prefix + "_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
}

func TestHealthAndReady(t *testing.T) {
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, nil, nil, nil, testMetrics("httpapi_health"))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}

func TestSongEndpoints(t *testing.T) {
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	store := archive.NewInMemoryStore()
	if err := store.SaveSong(context.Background(), archive.SongRecord{
		SessionID: "sess-1",
		Title:     "青春ソング",
		Lyrics:    "lyrics",
		VideoURL:  "https://cdn/v.mp4",
	}); err != nil {
		t.Fatalf("SaveSong() error = %v", err)
	}
	srv := New(cfg, sessions, nil, nil, store, testMetrics("httpapi_songs"))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/songs")
	if err != nil {
		t.Fatalf("GET /v1/songs error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var listed struct {
		Songs []archive.SongRecord `json:"songs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed.Songs) != 1 || listed.Songs[0].VideoURL != "https://cdn/v.mp4" {
		t.Fatalf("listed songs = %+v", listed.Songs)
	}

	getRes, err := http.Get(ts.URL + "/v1/songs/" + listed.Songs[0].ID)
	if err != nil {
		t.Fatalf("GET /v1/songs/{id} error = %v", err)
	}
	getRes.Body.Close()
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", getRes.StatusCode, http.StatusOK)
	}

	missingRes, err := http.Get(ts.URL + "/v1/songs/missing")
	if err != nil {
		t.Fatalf("GET missing song error = %v", err)
	}
	missingRes.Body.Close()
	if missingRes.StatusCode != http.StatusNotFound {
		t.Fatalf("missing song status = %d, want %d", missingRes.StatusCode, http.StatusNotFound)
	}

	badRes, err := http.Get(ts.URL + "/v1/songs?limit=0")
	if err != nil {
		t.Fatalf("GET bad limit error = %v", err)
	}
	badRes.Body.Close()
	if badRes.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want %d", badRes.StatusCode, http.StatusBadRequest)
	}
}

type fixedTranscriber struct{ text string }

func (f fixedTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, nil
}

func TestTranscribeEndpoint(t *testing.T) {
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, nil, fixedTranscriber{text: "夏"}, nil, testMetrics("httpapi_stt"))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "answer.webm")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("fake audio")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	res, err := http.Post(ts.URL+"/v1/transcribe", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /v1/transcribe error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["transcription"] != "夏" {
		t.Fatalf("transcription = %q, want %q", payload["transcription"], "夏")
	}

	noFile, err := http.Post(ts.URL+"/v1/transcribe", "multipart/form-data; boundary=x", strings.NewReader("--x--"))
	if err != nil {
		t.Fatalf("POST without file error = %v", err)
	}
	noFile.Body.Close()
	if noFile.StatusCode != http.StatusBadRequest {
		t.Fatalf("no-file status = %d, want %d", noFile.StatusCode, http.StatusBadRequest)
	}
}

// echoOrchestrator answers every inbound event with one question event and
// completes when the connection goes away.
type echoOrchestrator struct{}

func (echoOrchestrator) RunConnection(ctx context.Context, _ *session.Session, inbound <-chan any, outbound chan<- any) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			var text string
			switch m := msg.(type) {
			case protocol.Answer:
				text = m.Text
			default:
				text = "start"
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case outbound <- protocol.Question{Type: protocol.TypeQuestion, Message: text}:
			}
		}
	}
}

func TestWSGatewayRoundTrip(t *testing.T) {
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, echoOrchestrator{}, nil, nil, testMetrics("httpapi_ws"))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s error = %v", wsURL, err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	// The gateway accepts both the legacy bare-string frames and tagged
	// JSON; exercise one of each.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("start_interview")); err != nil {
		t.Fatalf("write start: %v", err)
	}
	var first protocol.Question
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first event: %v", err)
	}
	if first.Type != protocol.TypeQuestion || first.Message != "start" {
		t.Fatalf("first event = %+v", first)
	}

	if err := conn.WriteJSON(protocol.Answer{Type: protocol.TypeAnswer, Text: "夏"}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	var second protocol.Question
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second event: %v", err)
	}
	if second.Message != "夏" {
		t.Fatalf("second event = %+v, want the echoed answer", second)
	}
}

// burstOrchestrator queues its whole session tail at once and returns
// immediately, the worst case for flushing events that are still buffered
// when the run finishes.
type burstOrchestrator struct{}

func (burstOrchestrator) RunConnection(_ context.Context, _ *session.Session, _ <-chan any, outbound chan<- any) error {
	outbound <- protocol.StatusUpdate{Type: protocol.TypeStatusUpdate, Status: protocol.StatusGeneratingLyrics}
	outbound <- protocol.StatusUpdate{Type: protocol.TypeStatusUpdate, Status: protocol.StatusGeneratingMusic}
	outbound <- protocol.MusicComplete{
		Type: protocol.TypeMusicComplete,
		Data: protocol.MusicResult{VideoURL: "https://cdn/v.mp4", Title: "青春ソング"},
	}
	return nil
}

func TestWSGatewayFlushesQueuedEventsAfterRunEnds(t *testing.T) {
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, burstOrchestrator{}, nil, nil, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s error = %v", wsURL, err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	want := []protocol.MessageType{
		protocol.TypeStatusUpdate,
		protocol.TypeStatusUpdate,
		protocol.TypeMusicComplete,
	}
	for i, wantType := range want {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read event %d: %v (session tail truncated before %s)", i, err, wantType)
		}
		if env.Type != wantType {
			t.Fatalf("event %d type = %q, want %q", i, env.Type, wantType)
		}
	}
}
