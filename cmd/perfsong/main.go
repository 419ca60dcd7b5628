// Command perfsong replays a scripted interview against a running server
// and reports how long each stage takes, from the first question to the
// finished song. It speaks the same websocket protocol as the browser
// client, including the legacy bare-string start trigger.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okubo-r/seika/internal/protocol"
)

type options struct {
	baseURL     string
	answers     []string
	camera      bool
	answerDelay time.Duration
	timeout     time.Duration
	verbose     bool
}

type wsEnvelope struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Status  string          `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var defaultAnswers = []string{"夏", "部活", "悔しさ", "仲間", "ありがとう"}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfsong: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfsong: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var answersRaw string
	var answerDelayMS int
	var timeoutMin int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "server base URL")
	flag.StringVar(&answersRaw, "answers", "", "interview answers separated by '|' (optional)")
	flag.BoolVar(&cfg.camera, "camera", false, "start with presence detection instead of skipping it")
	flag.IntVar(&answerDelayMS, "answer-delay-ms", 200, "delay before sending each answer in milliseconds")
	flag.IntVar(&timeoutMin, "timeout-min", 10, "overall run timeout in minutes")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if answerDelayMS < 0 {
		answerDelayMS = 0
	}
	if timeoutMin <= 0 {
		return options{}, fmt.Errorf("timeout-min must be > 0")
	}
	cfg.answerDelay = time.Duration(answerDelayMS) * time.Millisecond
	cfg.timeout = time.Duration(timeoutMin) * time.Minute

	cfg.answers = splitAnswers(answersRaw)
	if len(cfg.answers) == 0 {
		cfg.answers = append([]string(nil), defaultAnswers...)
	}
	return cfg, nil
}

func splitAnswers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	wsURL, err := wsURLFor(cfg.baseURL)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, res, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	start := protocol.TypeStartInterview
	if cfg.camera {
		start = protocol.TypeStartCamera
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(start)); err != nil {
		return fmt.Errorf("send start trigger: %w", err)
	}

	started := time.Now()
	stageStart := started
	pending := append([]string(nil), cfg.answers...)
	questionsSeen := 0

	for {
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetReadDeadline(deadline)
		}
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("ws read: %w", err)
		}

		switch protocol.MessageType(env.Type) {
		case protocol.TypeSetupInstruction, protocol.TypeLipSyncReady:
			if cfg.verbose {
				fmt.Printf("perfsong: %-18s +%s %s\n", env.Type, sinceRounded(started), env.Message)
			}
		case protocol.TypeQuestion:
			questionsSeen++
			if cfg.verbose {
				fmt.Printf("perfsong: question %d  +%s %s\n", questionsSeen, sinceRounded(started), env.Message)
			}
			// The first question event is the greeting and the last is the
			// closing remark; neither awaits an answer.
			if questionsSeen == 1 || len(pending) == 0 {
				continue
			}
			if cfg.answerDelay > 0 {
				time.Sleep(cfg.answerDelay)
			}
			answer := pending[0]
			pending = pending[1:]
			if err := conn.WriteJSON(protocol.Answer{Type: protocol.TypeAnswer, Text: answer}); err != nil {
				return fmt.Errorf("send answer %q: %w", answer, err)
			}
		case protocol.TypeStatusUpdate:
			if cfg.verbose {
				fmt.Printf("perfsong: %-18s +%s (previous stage %s)\n", env.Status, sinceRounded(started), sinceRounded(stageStart))
			}
			stageStart = time.Now()
		case protocol.TypeMusicComplete:
			var result protocol.MusicResult
			if err := json.Unmarshal(env.Data, &result); err != nil {
				return fmt.Errorf("decode music_complete: %w", err)
			}
			fmt.Printf("perfsong: complete in %s (music stage %s)\n", sinceRounded(started), sinceRounded(stageStart))
			fmt.Printf("perfsong: video_url=%s\n", result.VideoURL)
			if result.AudioURL != "" {
				fmt.Printf("perfsong: audio_url=%s\n", result.AudioURL)
			}
			return nil
		case protocol.TypeMusicError:
			var detail string
			if err := json.Unmarshal(env.Data, &detail); err != nil {
				detail = string(env.Data)
			}
			return fmt.Errorf("generation failed after %s: %s", sinceRounded(started), detail)
		case protocol.TypeError:
			return fmt.Errorf("server error: %s", env.Message)
		default:
			if cfg.verbose {
				fmt.Printf("perfsong: ignoring event %q\n", env.Type)
			}
		}
	}
}

func wsURLFor(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func sinceRounded(t time.Time) time.Duration {
	return time.Since(t).Round(10 * time.Millisecond)
}
