package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okubo-r/seika/internal/reliability"
)

type VoicevoxConfig struct {
	BaseURL          string
	QuerySpeaker     int
	SynthesisSpeaker int
	Timeout          time.Duration
}

// VoicevoxSynthesizer speaks through a local VOICEVOX engine using its
// two-step flow: audio_query builds the synthesis parameters, synthesis
// renders them to WAV.
type VoicevoxSynthesizer struct {
	cfg    VoicevoxConfig
	client *http.Client
}

func NewVoicevoxSynthesizer(cfg VoicevoxConfig) *VoicevoxSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "http://localhost:50021"
	}
	if cfg.QuerySpeaker <= 0 {
		cfg.QuerySpeaker = 8
	}
	if cfg.SynthesisSpeaker <= 0 {
		cfg.SynthesisSpeaker = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &VoicevoxSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *VoicevoxSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	query, err := s.audioQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	// Fixed rendering profile for the interviewer voice.
	query["volumeScale"] = 1.0
	query["outputSamplingRate"] = 48000
	query["outputStereo"] = true
	query["intonationScale"] = 1.0
	query["speedScale"] = 1.0
	query["prePhonemeLength"] = 0.1
	query["postPhonemeLength"] = 0.1

	return s.synthesis(ctx, query)
}

// CheckEngine verifies the VOICEVOX engine is reachable and returns how many
// speakers it exposes.
func (s *VoicevoxSynthesizer) CheckEngine(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(s.cfg.BaseURL, "/")+"/speakers", nil)
	if err != nil {
		return 0, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("voicevox speakers: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return 0, &reliability.StatusError{Code: res.StatusCode, Body: string(body)}
	}
	var speakers []json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&speakers); err != nil {
		return 0, fmt.Errorf("voicevox speakers decode: %w", err)
	}
	return len(speakers), nil
}

func (s *VoicevoxSynthesizer) audioQuery(ctx context.Context, text string) (map[string]any, error) {
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/audio_query?" + url.Values{
		"text":    {text},
		"speaker": {strconv.Itoa(s.cfg.QuerySpeaker)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox audio_query: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return nil, &reliability.StatusError{Code: res.StatusCode, Body: string(body)}
	}

	var query map[string]any
	if err := json.NewDecoder(res.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("voicevox audio_query decode: %w", err)
	}
	return query, nil
}

func (s *VoicevoxSynthesizer) synthesis(ctx context.Context, query map[string]any) ([]byte, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("voicevox synthesis marshal: %w", err)
	}

	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/synthesis?" + url.Values{
		"speaker": {strconv.Itoa(s.cfg.SynthesisSpeaker)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "audio/wav")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox synthesis: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return nil, &reliability.StatusError{Code: res.StatusCode, Body: string(body)}
	}

	wav, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("voicevox synthesis read: %w", err)
	}
	return wav, nil
}
