// Package interview drives one live conversation: presence check, the
// scripted question loop, then the lyrics and music generation stages.
// One orchestrator run owns one session from start trigger to terminal
// state; no two transitions for the same session ever run concurrently.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/okubo-r/seika/internal/archive"
	"github.com/okubo-r/seika/internal/jobs"
	"github.com/okubo-r/seika/internal/observability"
	"github.com/okubo-r/seika/internal/pipeline"
	"github.com/okubo-r/seika/internal/presence"
	"github.com/okubo-r/seika/internal/protocol"
	"github.com/okubo-r/seika/internal/session"
	"github.com/okubo-r/seika/internal/voice"
)

// SongPipeline is the generation backend consumed by the orchestrator.
type SongPipeline interface {
	GenerateLyrics(ctx context.Context, themes []string, observer func(progress int)) (string, error)
	GenerateMusic(ctx context.Context, themes []string, lyrics string, observer func(progress int)) (pipeline.SongResult, error)
}

var errConnectionClosed = errors.New("connection closed")

type Config struct {
	// PresenceTimeout bounds one camera detection attempt.
	PresenceTimeout time.Duration
	// PresencePollInterval spaces detection retries while nobody is seen.
	PresencePollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PresenceTimeout <= 0 {
		c.PresenceTimeout = 60 * time.Second
	}
	if c.PresencePollInterval <= 0 {
		c.PresencePollInterval = 500 * time.Millisecond
	}
	return c
}

type Orchestrator struct {
	cfg      Config
	sessions *session.Manager
	pipe     SongPipeline
	synth    voice.Synthesizer
	player   voice.Player
	detector presence.Detector
	store    archive.Store
	metrics  *observability.Metrics
}

func New(cfg Config, sessions *session.Manager, pipe SongPipeline, synth voice.Synthesizer, player voice.Player, detector presence.Detector, store archive.Store, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg.withDefaults(),
		sessions: sessions,
		pipe:     pipe,
		synth:    synth,
		player:   player,
		detector: detector,
		store:    store,
		metrics:  metrics,
	}
}

// RunConnection runs one session to its terminal state. It consumes inbound
// events from the gateway and emits outbound events to it; ctx cancellation
// (disconnect) halts the run with no further outbound traffic.
func (o *Orchestrator) RunConnection(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) error {
	o.countEvent("started")

	err := o.run(ctx, sess, inbound, outbound)
	switch {
	case err == nil:
		o.countEvent("completed")
	case errors.Is(err, context.Canceled) || errors.Is(err, jobs.ErrCanceled):
		o.countEvent("canceled")
	default:
		o.countEvent("failed")
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) error {
	if err := o.awaitStart(ctx, sess, inbound, outbound); err != nil {
		return o.fail(ctx, sess, outbound, err)
	}

	// Greeting is emitted exactly once, then the question loop begins.
	if err := o.setState(sess, session.StateGreeting); err != nil {
		return err
	}
	o.speak(ctx, GreetingMessage)
	if err := o.send(ctx, outbound, protocol.Question{Type: protocol.TypeQuestion, Message: GreetingMessage}); err != nil {
		return err
	}

	if err := o.setState(sess, session.StateAskingQuestion); err != nil {
		return err
	}
	for i := range Questions {
		if err := o.askQuestion(ctx, sess, i, inbound, outbound); err != nil {
			return o.fail(ctx, sess, outbound, err)
		}
	}

	if err := o.setState(sess, session.StateClosing); err != nil {
		return err
	}
	o.speak(ctx, ClosingMessage)
	if err := o.send(ctx, outbound, protocol.Question{Type: protocol.TypeQuestion, Message: ClosingMessage}); err != nil {
		return err
	}

	themes, err := o.sessions.AnswersSnapshot(sess.ID)
	if err != nil {
		return err
	}

	song, lyrics, err := o.generate(ctx, sess, themes, outbound)
	if err != nil {
		return o.failGeneration(ctx, sess, outbound, err)
	}

	o.speak(ctx, SongDoneMessage)
	if err := o.send(ctx, outbound, protocol.MusicComplete{
		Type: protocol.TypeMusicComplete,
		Data: protocol.MusicResult{
			VideoURL: song.VideoURL,
			AudioURL: song.AudioURL,
			Lyrics:   lyrics,
			Title:    SongTitle,
		},
	}); err != nil {
		return err
	}

	if err := o.setState(sess, session.StateComplete); err != nil {
		return err
	}
	o.archiveSong(sess.ID, themes, lyrics, song)
	return nil
}

// awaitStart blocks until the client sends a start trigger. start_camera
// inserts the presence check; start_interview skips straight to the
// question loop. Anything else is a protocol violation and is ignored.
func (o *Orchestrator) awaitStart(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) error {
	for {
		msg, err := o.next(ctx, inbound)
		if err != nil {
			return err
		}
		switch msg.(type) {
		case protocol.StartCamera:
			if err := o.setState(sess, session.StateAwaitingPresence); err != nil {
				return err
			}
			if err := o.send(ctx, outbound, protocol.SetupInstruction{Type: protocol.TypeSetupInstruction, Message: SetupInstructionMessage}); err != nil {
				return err
			}
			if err := o.awaitPresence(ctx); err != nil {
				return fmt.Errorf("presence detection: %w", err)
			}
			o.countEvent("presence_confirmed")
			return o.send(ctx, outbound, protocol.LipSyncReady{Type: protocol.TypeLipSyncReady, Message: GreetingMessage})
		case protocol.StartInterview:
			return nil
		default:
			log.Printf("session %s: ignoring %T before start", sess.ID, msg)
		}
	}
}

// awaitPresence holds the camera for exactly one detection attempt. The
// capture is released on every exit path.
func (o *Orchestrator) awaitPresence(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PresenceTimeout)
	defer cancel()

	capture, err := o.detector.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := capture.Close(); err != nil {
			log.Printf("release camera capture: %v", err)
		}
	}()

	for {
		detected, err := capture.Detect(ctx)
		if err != nil {
			return err
		}
		if detected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.PresencePollInterval):
		}
	}
}

// askQuestion emits question i and blocks for exactly one answer. Inbound
// events that are not answers leave the state untouched.
func (o *Orchestrator) askQuestion(ctx context.Context, sess *session.Session, i int, inbound <-chan any, outbound chan<- any) error {
	q := Questions[i]
	o.speak(ctx, q)
	if err := o.send(ctx, outbound, protocol.Question{Type: protocol.TypeQuestion, Message: q}); err != nil {
		return err
	}

	for {
		msg, err := o.next(ctx, inbound)
		if err != nil {
			return err
		}
		answer, ok := msg.(protocol.Answer)
		if !ok {
			log.Printf("session %s: ignoring %T while awaiting answer %d", sess.ID, msg, i)
			continue
		}
		if _, err := o.sessions.AppendAnswer(sess.ID, answer.Text); err != nil {
			return err
		}
		return nil
	}
}

// generate runs the two stages in order. Music is never submitted unless
// the lyrics stage reached terminal success.
func (o *Orchestrator) generate(ctx context.Context, sess *session.Session, themes []string, outbound chan<- any) (pipeline.SongResult, string, error) {
	if err := o.setState(sess, session.StateGeneratingLyrics); err != nil {
		return pipeline.SongResult{}, "", err
	}
	if err := o.send(ctx, outbound, protocol.StatusUpdate{Type: protocol.TypeStatusUpdate, Status: protocol.StatusGeneratingLyrics}); err != nil {
		return pipeline.SongResult{}, "", err
	}
	lyrics, err := o.pipe.GenerateLyrics(ctx, themes, o.progressLogger(sess.ID, "lyrics"))
	if err != nil {
		return pipeline.SongResult{}, "", fmt.Errorf("generate lyrics: %w", err)
	}
	o.speak(ctx, LyricsDoneMessage)

	if err := o.setState(sess, session.StateGeneratingMusic); err != nil {
		return pipeline.SongResult{}, "", err
	}
	if err := o.send(ctx, outbound, protocol.StatusUpdate{Type: protocol.TypeStatusUpdate, Status: protocol.StatusGeneratingMusic}); err != nil {
		return pipeline.SongResult{}, "", err
	}
	song, err := o.pipe.GenerateMusic(ctx, themes, lyrics, o.progressLogger(sess.ID, "music"))
	if err != nil {
		return pipeline.SongResult{}, "", fmt.Errorf("generate music: %w", err)
	}
	return song, lyrics, nil
}

// fail marks the session failed and reports the error over the connection
// unless the run was canceled, in which case nothing more is sent.
func (o *Orchestrator) fail(ctx context.Context, sess *session.Session, outbound chan<- any, cause error) error {
	_ = o.setState(sess, session.StateFailed)
	if canceled(ctx, cause) {
		return cause
	}
	if err := o.send(ctx, outbound, protocol.ErrorEvent{Type: protocol.TypeError, Message: cause.Error()}); err != nil {
		log.Printf("session %s: report failure: %v", sess.ID, err)
	}
	return cause
}

// failGeneration is the pipeline-stage variant of fail: terminal pipeline
// outcomes surface as music_error, not a generic error event.
func (o *Orchestrator) failGeneration(ctx context.Context, sess *session.Session, outbound chan<- any, cause error) error {
	_ = o.setState(sess, session.StateFailed)
	if canceled(ctx, cause) {
		return cause
	}
	if err := o.send(ctx, outbound, protocol.MusicError{Type: protocol.TypeMusicError, Data: cause.Error()}); err != nil {
		log.Printf("session %s: report generation failure: %v", sess.ID, err)
	}
	return cause
}

func canceled(ctx context.Context, cause error) bool {
	return ctx.Err() != nil || errors.Is(cause, context.Canceled) || errors.Is(cause, jobs.ErrCanceled)
}

// speak renders one line through TTS and the local player. Synthesis and
// playback failures are logged and swallowed: the conversation continues
// without audio.
func (o *Orchestrator) speak(ctx context.Context, text string) {
	if o.synth == nil || ctx.Err() != nil {
		return
	}
	wav, err := o.synth.Synthesize(ctx, text)
	if err != nil {
		log.Printf("synthesize %q: %v", text, err)
		return
	}
	if o.player == nil {
		return
	}
	if err := o.player.Play(ctx, wav); err != nil {
		log.Printf("play synthesized audio: %v", err)
	}
}

func (o *Orchestrator) archiveSong(sessionID string, themes []string, lyrics string, song pipeline.SongResult) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := o.store.SaveSong(ctx, archive.SongRecord{
		SessionID: sessionID,
		Title:     SongTitle,
		Themes:    themes,
		Lyrics:    lyrics,
		VideoURL:  song.VideoURL,
		AudioURL:  song.AudioURL,
	})
	if err != nil {
		log.Printf("session %s: archive song: %v", sessionID, err)
	}
}

func (o *Orchestrator) next(ctx context.Context, inbound <-chan any) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-inbound:
		if !ok {
			return nil, errConnectionClosed
		}
		return msg, nil
	}
}

// send never emits after cancellation: the ctx branch wins once the
// connection is gone.
func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case outbound <- msg:
		return nil
	}
}

func (o *Orchestrator) setState(sess *session.Session, next session.State) error {
	if err := o.sessions.SetState(sess.ID, next); err != nil {
		return fmt.Errorf("transition to %s: %w", next, err)
	}
	sess.State = next
	return nil
}

func (o *Orchestrator) progressLogger(sessionID, stage string) func(progress int) {
	return func(progress int) {
		log.Printf("session %s: %s generation %d%%", sessionID, stage, progress)
	}
}

func (o *Orchestrator) countEvent(event string) {
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}
