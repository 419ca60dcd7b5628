package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okubo-r/seika/internal/reliability"
)

// HTTPGenerator forwards prompts to a generation-compatible HTTP endpoint
// that returns either plain text or a JSON object carrying the text under a
// well-known key.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGenerator{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &reliability.StatusError{Code: res.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", fmt.Errorf("empty generation response")
		}
		return text, nil
	}

	text := strings.TrimSpace(extractText(obj))
	if text == "" {
		return "", fmt.Errorf("generation response carried no text")
	}
	return text, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "lyrics", "output", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
