package music

import (
	"context"
	"sync"

	"github.com/okubo-r/seika/internal/jobs"
)

// MockClient simulates a short render for local runs without an API key.
type MockClient struct {
	mu    sync.Mutex
	polls map[string]int
}

func NewMockClient() *MockClient {
	return &MockClient{polls: make(map[string]int)}
}

func (c *MockClient) Submit(_ context.Context, _ Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := "mock-song-1"
	c.polls[id] = 0
	return id, nil
}

func (c *MockClient) Status(_ context.Context, id string) (jobs.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls[id]++
	switch c.polls[id] {
	case 1:
		return jobs.Status{State: jobs.StateRunning, Progress: 30}, nil
	case 2:
		return jobs.Status{State: jobs.StateRunning, Progress: 80}, nil
	default:
		return jobs.Status{State: jobs.StateCompleted, Result: jobs.Result{Raw: map[string]any{
			"status":    "complete",
			"video_url": "https://example.invalid/mock-song.mp4",
			"audio_url": "https://example.invalid/mock-song.mp3",
		}}}, nil
	}
}
