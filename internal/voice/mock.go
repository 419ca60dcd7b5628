package voice

import (
	"context"

	"github.com/okubo-r/seika/internal/audio"
)

// MockSynthesizer is a local fallback used when no VOICEVOX engine is
// reachable. It renders a short silent clip so downstream playback code
// still sees valid WAV bytes.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (s *MockSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	// Same rendering profile as the real engine: 48kHz stereo. 50ms of
	// silence per rune, capped at 2s, so clip length tracks the text.
	const (
		sampleRate = 48000
		channels   = 2
	)
	frames := len([]rune(text)) * sampleRate / 20
	if max := sampleRate * 2; frames > max {
		frames = max
	}
	if frames == 0 {
		frames = sampleRate / 20
	}
	return audio.EncodeWAVPCM16LE(make([]byte, frames*channels*2), sampleRate, channels)
}
