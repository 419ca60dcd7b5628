package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandPlayer writes a clip to a temp file and hands it to an external
// player binary (afplay, aplay, ffplay...). The temp file is removed on
// every exit path.
type CommandPlayer struct {
	command string
	args    []string
}

func NewCommandPlayer(command string, args ...string) *CommandPlayer {
	return &CommandPlayer{command: strings.TrimSpace(command), args: args}
}

func (p *CommandPlayer) Play(ctx context.Context, wav []byte) error {
	if p.command == "" {
		return nil
	}
	f, err := os.CreateTemp("", "seika-tts-*.wav")
	if err != nil {
		return fmt.Errorf("player temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(wav); err != nil {
		f.Close()
		return fmt.Errorf("player write clip: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	args := append(append([]string(nil), p.args...), path)
	cmd := exec.CommandContext(ctx, p.command, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player %s: %w", p.command, err)
	}
	return nil
}

// NopPlayer discards audio. Used when no playback command is configured.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, []byte) error { return nil }
