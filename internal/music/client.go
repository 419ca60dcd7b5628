// Package music talks to a job-oriented song generation API: submit returns
// a job id, status is polled until the render finishes.
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okubo-r/seika/internal/jobs"
	"github.com/okubo-r/seika/internal/reliability"
)

// Request describes one song render.
type Request struct {
	Prompt string `json:"prompt"`
	Lyrics string `json:"lyrics"`
	Title  string `json:"title,omitempty"`
	Tags   string `json:"tags,omitempty"`
}

// Client is the job API contract the pipeline consumes.
type Client interface {
	Submit(ctx context.Context, req Request) (string, error)
	Status(ctx context.Context, id string) (jobs.Status, error)
}

type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) Submit(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal submit: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	obj, err := c.doJSON(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit music job: %w", err)
	}

	id := firstString(obj, "id", "job_id")
	if id == "" {
		if data, ok := obj["data"].(map[string]any); ok {
			id = firstString(data, "id", "job_id")
		}
	}
	if id == "" {
		return "", fmt.Errorf("submit music job: response carried no job id")
	}
	return id, nil
}

func (c *HTTPClient) Status(ctx context.Context, id string) (jobs.Status, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/status?" + url.Values{"id": {id}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return jobs.Status{}, err
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	obj, err := c.doJSON(httpReq)
	if err != nil {
		return jobs.Status{}, fmt.Errorf("music job status: %w", err)
	}
	return mapStatus(obj)
}

func (c *HTTPClient) doJSON(req *http.Request) (map[string]any, error) {
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &reliability.StatusError{Code: res.StatusCode, Body: string(body)}
	}

	var obj map[string]any
	if err := json.NewDecoder(res.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return obj, nil
}

// mapStatus folds the provider's state vocabulary onto the poller's.
func mapStatus(obj map[string]any) (jobs.Status, error) {
	state := strings.ToLower(firstString(obj, "status", "state"))
	progress := 0
	if v, ok := obj["progress"].(float64); ok {
		progress = int(v)
	}

	switch state {
	case "submitted", "pending", "queued":
		return jobs.Status{State: jobs.StateSubmitted}, nil
	case "running", "processing", "streaming", "generating":
		return jobs.Status{State: jobs.StateRunning, Progress: progress}, nil
	case "complete", "completed", "succeeded", "success":
		return jobs.Status{State: jobs.StateCompleted, Result: jobs.Result{Raw: obj}}, nil
	case "failed", "error":
		reason := firstString(obj, "error", "reason", "detail")
		if reason == "" {
			reason = "generation failed"
		}
		return jobs.Status{State: jobs.StateFailed, Reason: reason}, nil
	default:
		return jobs.Status{}, fmt.Errorf("unsupported job status %q", state)
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
