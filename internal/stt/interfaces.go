package stt

import "context"

// Transcriber converts one recorded answer clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
