package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/okubo-r/seika/internal/reliability"
)

// WhisperTranscriber posts recorded audio to a Whisper-style inference HTTP
// server that accepts a multipart "file" field and returns {"text":"..."}.
type WhisperTranscriber struct {
	endpoint string
	language string
	client   *http.Client
}

func NewWhisperTranscriber(endpoint, language string, timeout time.Duration) *WhisperTranscriber {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = "http://localhost:7070/inference"
	}
	if strings.TrimSpace(language) == "" {
		language = "ja"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhisperTranscriber{
		endpoint: endpoint,
		language: language,
		client:   &http.Client{Timeout: timeout},
	}
}

type whisperResponse struct {
	Text string `json:"text"`
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		filename = "answer.webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("write audio to form: %w", err)
	}
	if err := mw.WriteField("language", t.language); err != nil {
		return "", fmt.Errorf("write language field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return "", &reliability.StatusError{Code: res.StatusCode, Body: string(msg)}
	}

	var parsed whisperResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}
