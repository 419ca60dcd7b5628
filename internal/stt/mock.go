package stt

import "context"

// MockTranscriber echoes a fixed transcription for local runs without a
// speech backend.
type MockTranscriber struct {
	Text string
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Text: "simulated answer"}
}

func (t *MockTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return t.Text, nil
}
