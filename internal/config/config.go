package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the interview-to-song service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	TTSProvider              string
	VoicevoxBaseURL          string
	VoicevoxQuerySpeaker     int
	VoicevoxSynthesisSpeaker int
	VoicevoxTimeout          time.Duration
	AudioPlayerCommand       string

	TextGenProvider string
	GeminiAPIKey    string
	GeminiModel     string
	TextGenHTTPURL  string

	MusicProvider   string
	MusicAPIBaseURL string
	MusicAPIKey     string

	WhisperURL      string
	WhisperLanguage string

	PresenceProvider     string
	PresenceBaseURL      string
	PresenceTimeout      time.Duration
	PresencePollInterval time.Duration

	LyricsMaxAttempts  int
	LyricsPollInterval time.Duration
	MusicMaxAttempts   int
	MusicPollInterval  time.Duration
	SubmitMaxRetries   int
	SubmitRetryDelay   time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "seika"),
		AllowAnyOrigin:   false,

		TTSProvider:              envOrDefault("TTS_PROVIDER", "auto"),
		VoicevoxBaseURL:          envOrDefault("VOICEVOX_BASE_URL", "http://localhost:50021"),
		VoicevoxQuerySpeaker:     8,
		VoicevoxSynthesisSpeaker: 2,
		VoicevoxTimeout:          15 * time.Second,
		AudioPlayerCommand:       trimEnv("AUDIO_PLAYER_COMMAND"),

		TextGenProvider: envOrDefault("TEXTGEN_PROVIDER", "auto"),
		GeminiAPIKey:    trimEnv("GEMINI_API_KEY"),
		GeminiModel:     envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		TextGenHTTPURL:  trimEnv("TEXTGEN_HTTP_URL"),

		MusicProvider:   envOrDefault("MUSIC_PROVIDER", "auto"),
		MusicAPIBaseURL: trimEnv("MUSIC_API_BASE_URL"),
		MusicAPIKey:     trimEnv("MUSIC_API_KEY"),

		WhisperURL:      envOrDefault("WHISPER_URL", "http://localhost:7070/inference"),
		WhisperLanguage: envOrDefault("WHISPER_LANGUAGE", "ja"),

		PresenceProvider:     envOrDefault("PRESENCE_PROVIDER", "auto"),
		PresenceBaseURL:      trimEnv("PRESENCE_BASE_URL"),
		PresenceTimeout:      60 * time.Second,
		PresencePollInterval: 500 * time.Millisecond,

		// Music generation takes minutes; lyrics rarely more than seconds.
		LyricsMaxAttempts:  30,
		LyricsPollInterval: 2 * time.Second,
		MusicMaxAttempts:   60,
		MusicPollInterval:  5 * time.Second,
		SubmitMaxRetries:   3,
		SubmitRetryDelay:   2 * time.Second,

		DatabaseURL: trimEnv("DATABASE_URL"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.VoicevoxQuerySpeaker, err = intFromEnv("VOICEVOX_QUERY_SPEAKER", cfg.VoicevoxQuerySpeaker)
	if err != nil {
		return Config{}, err
	}
	cfg.VoicevoxSynthesisSpeaker, err = intFromEnv("VOICEVOX_SYNTHESIS_SPEAKER", cfg.VoicevoxSynthesisSpeaker)
	if err != nil {
		return Config{}, err
	}
	cfg.VoicevoxTimeout, err = durationFromEnv("VOICEVOX_TIMEOUT", cfg.VoicevoxTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg.PresenceTimeout, err = durationFromEnv("PRESENCE_TIMEOUT", cfg.PresenceTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PresencePollInterval, err = durationFromEnv("PRESENCE_POLL_INTERVAL", cfg.PresencePollInterval)
	if err != nil {
		return Config{}, err
	}

	cfg.LyricsMaxAttempts, err = intFromEnv("LYRICS_MAX_ATTEMPTS", cfg.LyricsMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.LyricsPollInterval, err = durationFromEnv("LYRICS_POLL_INTERVAL", cfg.LyricsPollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.MusicMaxAttempts, err = intFromEnv("MUSIC_MAX_ATTEMPTS", cfg.MusicMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.MusicPollInterval, err = durationFromEnv("MUSIC_POLL_INTERVAL", cfg.MusicPollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SubmitMaxRetries, err = intFromEnv("SUBMIT_MAX_RETRIES", cfg.SubmitMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.SubmitRetryDelay, err = durationFromEnv("SUBMIT_RETRY_DELAY", cfg.SubmitRetryDelay)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.LyricsMaxAttempts <= 0 || cfg.MusicMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("poll attempt budgets must be positive")
	}
	if cfg.LyricsPollInterval <= 0 || cfg.MusicPollInterval <= 0 {
		return Config{}, fmt.Errorf("poll intervals must be positive")
	}
	if cfg.SubmitMaxRetries < 0 {
		return Config{}, fmt.Errorf("SUBMIT_MAX_RETRIES must be >= 0")
	}
	if cfg.VoicevoxQuerySpeaker < 0 || cfg.VoicevoxSynthesisSpeaker < 0 {
		return Config{}, fmt.Errorf("voicevox speaker ids must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
