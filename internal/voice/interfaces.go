package voice

import "context"

// Synthesizer turns one utterance into a playable WAV clip. Synthesis
// failures are side-effect-only for the interview: callers log and move on.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player renders a synthesized clip on the host. Playback is a collaborator,
// not part of the orchestration core; implementations decide how (speakers,
// files, nothing at all).
type Player interface {
	Play(ctx context.Context, wav []byte) error
}
