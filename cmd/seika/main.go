package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okubo-r/seika/internal/archive"
	"github.com/okubo-r/seika/internal/config"
	"github.com/okubo-r/seika/internal/httpapi"
	"github.com/okubo-r/seika/internal/interview"
	"github.com/okubo-r/seika/internal/jobs"
	"github.com/okubo-r/seika/internal/music"
	"github.com/okubo-r/seika/internal/observability"
	"github.com/okubo-r/seika/internal/pipeline"
	"github.com/okubo-r/seika/internal/presence"
	"github.com/okubo-r/seika/internal/session"
	"github.com/okubo-r/seika/internal/stt"
	"github.com/okubo-r/seika/internal/textgen"
	"github.com/okubo-r/seika/internal/voice"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("no .env loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	songStore, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("song archive init failed: %v", err)
	}
	defer songStore.Close()

	synth := resolveSynthesizer(ctx, cfg)
	player := resolvePlayer(cfg)
	generator := resolveGenerator(ctx, cfg)
	defer closeIfCloser(generator)
	musicClient := resolveMusicClient(cfg)
	detector := resolveDetector(cfg)
	transcriber := stt.NewWhisperTranscriber(cfg.WhisperURL, cfg.WhisperLanguage, 60*time.Second)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	coordinator := pipeline.New(generator, musicClient,
		jobs.Config{
			MaxAttempts:      cfg.LyricsMaxAttempts,
			PollInterval:     cfg.LyricsPollInterval,
			MaxSubmitRetries: cfg.SubmitMaxRetries,
			SubmitRetryDelay: cfg.SubmitRetryDelay,
		},
		jobs.Config{
			MaxAttempts:      cfg.MusicMaxAttempts,
			PollInterval:     cfg.MusicPollInterval,
			MaxSubmitRetries: cfg.SubmitMaxRetries,
			SubmitRetryDelay: cfg.SubmitRetryDelay,
			DelayFunc:        jobs.NearCompletionDelay,
		},
		metrics,
	)

	orchestrator := interview.New(
		interview.Config{
			PresenceTimeout:      cfg.PresenceTimeout,
			PresencePollInterval: cfg.PresencePollInterval,
		},
		sessions,
		coordinator,
		synth,
		player,
		detector,
		songStore,
		metrics,
	)

	api := httpapi.New(cfg, sessions, orchestrator, transcriber, songStore, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

func resolveSynthesizer(ctx context.Context, cfg config.Config) voice.Synthesizer {
	mode := strings.ToLower(strings.TrimSpace(cfg.TTSProvider))
	if mode == "" {
		mode = "auto"
	}

	tryVoicevox := func(fatal bool) voice.Synthesizer {
		s := voice.NewVoicevoxSynthesizer(voice.VoicevoxConfig{
			BaseURL:          cfg.VoicevoxBaseURL,
			QuerySpeaker:     cfg.VoicevoxQuerySpeaker,
			SynthesisSpeaker: cfg.VoicevoxSynthesisSpeaker,
			Timeout:          cfg.VoicevoxTimeout,
		})
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		speakers, err := s.CheckEngine(checkCtx)
		if err != nil {
			if fatal {
				log.Fatalf("voicevox engine unreachable at %s: %v", cfg.VoicevoxBaseURL, err)
			}
			log.Printf("voicevox engine unreachable at %s: %v", cfg.VoicevoxBaseURL, err)
			return nil
		}
		log.Printf("tts provider: voicevox (%d speakers)", speakers)
		return s
	}

	switch mode {
	case "voicevox":
		return tryVoicevox(true)
	case "mock":
		log.Printf("tts provider: mock")
		return voice.NewMockSynthesizer()
	case "auto":
		if s := tryVoicevox(false); s != nil {
			return s
		}
		log.Printf("tts provider: mock (voicevox unavailable)")
		return voice.NewMockSynthesizer()
	default:
		log.Fatalf("invalid TTS_PROVIDER: %q (expected auto|voicevox|mock)", cfg.TTSProvider)
		return nil
	}
}

func resolvePlayer(cfg config.Config) voice.Player {
	command := strings.Fields(cfg.AudioPlayerCommand)
	if len(command) == 0 {
		return voice.NopPlayer{}
	}
	log.Printf("audio player: %s", command[0])
	return voice.NewCommandPlayer(command[0], command[1:]...)
}

func resolveGenerator(ctx context.Context, cfg config.Config) textgen.Generator {
	mode := strings.ToLower(strings.TrimSpace(cfg.TextGenProvider))
	if mode == "" {
		mode = "auto"
	}

	tryGemini := func(fatal bool) textgen.Generator {
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			if fatal {
				log.Fatalf("TEXTGEN_PROVIDER=gemini but GEMINI_API_KEY is not set")
			}
			return nil
		}
		g, err := textgen.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			if fatal {
				log.Fatalf("gemini init failed: %v", err)
			}
			log.Printf("gemini unavailable: %v", err)
			return nil
		}
		log.Printf("textgen provider: gemini (%s)", cfg.GeminiModel)
		return g
	}

	switch mode {
	case "gemini":
		return tryGemini(true)
	case "http":
		if strings.TrimSpace(cfg.TextGenHTTPURL) == "" {
			log.Fatalf("TEXTGEN_PROVIDER=http but TEXTGEN_HTTP_URL is not set")
		}
		log.Printf("textgen provider: http (%s)", cfg.TextGenHTTPURL)
		return textgen.NewHTTPGenerator(cfg.TextGenHTTPURL, 60*time.Second)
	case "mock":
		log.Printf("textgen provider: mock")
		return textgen.NewMockGenerator()
	case "auto":
		if g := tryGemini(false); g != nil {
			return g
		}
		if strings.TrimSpace(cfg.TextGenHTTPURL) != "" {
			log.Printf("textgen provider: http (%s)", cfg.TextGenHTTPURL)
			return textgen.NewHTTPGenerator(cfg.TextGenHTTPURL, 60*time.Second)
		}
		log.Printf("textgen provider: mock (no gemini key or http url)")
		return textgen.NewMockGenerator()
	default:
		log.Fatalf("invalid TEXTGEN_PROVIDER: %q (expected auto|gemini|http|mock)", cfg.TextGenProvider)
		return nil
	}
}

func resolveMusicClient(cfg config.Config) music.Client {
	mode := strings.ToLower(strings.TrimSpace(cfg.MusicProvider))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "http":
		if strings.TrimSpace(cfg.MusicAPIBaseURL) == "" {
			log.Fatalf("MUSIC_PROVIDER=http but MUSIC_API_BASE_URL is not set")
		}
		log.Printf("music provider: http (%s)", cfg.MusicAPIBaseURL)
		return music.NewHTTPClient(music.HTTPConfig{
			BaseURL: cfg.MusicAPIBaseURL,
			APIKey:  cfg.MusicAPIKey,
		})
	case "mock":
		log.Printf("music provider: mock")
		return music.NewMockClient()
	case "auto":
		if strings.TrimSpace(cfg.MusicAPIBaseURL) != "" {
			log.Printf("music provider: http (%s)", cfg.MusicAPIBaseURL)
			return music.NewHTTPClient(music.HTTPConfig{
				BaseURL: cfg.MusicAPIBaseURL,
				APIKey:  cfg.MusicAPIKey,
			})
		}
		log.Printf("music provider: mock (no api base url)")
		return music.NewMockClient()
	default:
		log.Fatalf("invalid MUSIC_PROVIDER: %q (expected auto|http|mock)", cfg.MusicProvider)
		return nil
	}
}

func resolveDetector(cfg config.Config) presence.Detector {
	mode := strings.ToLower(strings.TrimSpace(cfg.PresenceProvider))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "http":
		if strings.TrimSpace(cfg.PresenceBaseURL) == "" {
			log.Fatalf("PRESENCE_PROVIDER=http but PRESENCE_BASE_URL is not set")
		}
		log.Printf("presence provider: http (%s)", cfg.PresenceBaseURL)
		return presence.NewHTTPDetector(presence.HTTPConfig{BaseURL: cfg.PresenceBaseURL})
	case "mock":
		log.Printf("presence provider: mock")
		return presence.NewMockDetector()
	case "auto":
		if strings.TrimSpace(cfg.PresenceBaseURL) != "" {
			log.Printf("presence provider: http (%s)", cfg.PresenceBaseURL)
			return presence.NewHTTPDetector(presence.HTTPConfig{BaseURL: cfg.PresenceBaseURL})
		}
		log.Printf("presence provider: mock (no camera sidecar url)")
		return presence.NewMockDetector()
	default:
		log.Fatalf("invalid PRESENCE_PROVIDER: %q (expected auto|http|mock)", cfg.PresenceProvider)
		return nil
	}
}

func closeIfCloser(v any) {
	if c, ok := v.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
