package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okubo-r/seika/internal/jobs"
	"github.com/okubo-r/seika/internal/music"
)

type stubGenerator struct {
	prompts []string
	text    string
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

type jobBackedStub struct {
	stubGenerator
	submits  int
	statuses []jobs.Status
	polls    int
}

func (g *jobBackedStub) SubmitLyrics(_ context.Context, prompt string) (string, error) {
	g.submits++
	g.prompts = append(g.prompts, prompt)
	return "L1", nil
}

func (g *jobBackedStub) LyricsStatus(context.Context, string) (jobs.Status, error) {
	status := g.statuses[g.polls]
	g.polls++
	return status, nil
}

type stubMusicClient struct {
	submits   int
	requests  []music.Request
	statuses  []jobs.Status
	polls     int
	submitErr error
}

func (c *stubMusicClient) Submit(_ context.Context, req music.Request) (string, error) {
	c.submits++
	c.requests = append(c.requests, req)
	if c.submitErr != nil {
		return "", c.submitErr
	}
	return "M1", nil
}

func (c *stubMusicClient) Status(context.Context, string) (jobs.Status, error) {
	if c.polls >= len(c.statuses) {
		return c.statuses[len(c.statuses)-1], nil
	}
	status := c.statuses[c.polls]
	c.polls++
	return status, nil
}

func fastConfig(maxAttempts int) jobs.Config {
	return jobs.Config{
		MaxAttempts:      maxAttempts,
		PollInterval:     time.Millisecond,
		MaxSubmitRetries: 1,
		SubmitRetryDelay: time.Millisecond,
	}
}

func TestGenerateLyricsJoinsThemesInOrder(t *testing.T) {
	gen := &stubGenerator{text: "lyrics text"}
	c := New(gen, &stubMusicClient{}, fastConfig(3), fastConfig(3), nil)

	themes := []string{"夏", "部活", "友情", "努力", "笑顔"}
	lyrics, err := c.GenerateLyrics(context.Background(), themes, nil)
	if err != nil {
		t.Fatalf("GenerateLyrics() error = %v", err)
	}
	if lyrics != "lyrics text" {
		t.Fatalf("lyrics = %q, want %q", lyrics, "lyrics text")
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("generator calls = %d, want 1", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "夏, 部活, 友情, 努力, 笑顔") {
		t.Fatalf("prompt does not join themes in order: %q", gen.prompts[0])
	}
}

func TestGenerateLyricsUsesJobBackendWhenAvailable(t *testing.T) {
	gen := &jobBackedStub{
		statuses: []jobs.Status{
			{State: jobs.StateRunning, Progress: 10},
			{State: jobs.StateRunning, Progress: 10},
			{State: jobs.StateRunning, Progress: 90},
			{State: jobs.StateCompleted, Result: jobs.Result{Text: "lyrics text"}},
		},
	}
	c := New(gen, &stubMusicClient{}, fastConfig(10), fastConfig(3), nil)

	var seen []int
	lyrics, err := c.GenerateLyrics(context.Background(), []string{"夏"}, func(p int) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("GenerateLyrics() error = %v", err)
	}
	if lyrics != "lyrics text" {
		t.Fatalf("lyrics = %q, want %q", lyrics, "lyrics text")
	}
	if gen.submits != 1 {
		t.Fatalf("submits = %d, want 1", gen.submits)
	}
	if len(seen) != 2 || seen[0] != 10 || seen[1] != 90 {
		t.Fatalf("observed progress = %v, want [10 90]", seen)
	}
}

func TestGenerateLyricsNonTransientBackendErrorIsFatal(t *testing.T) {
	gen := &stubGenerator{err: errors.New("prompt rejected")}
	c := New(gen, &stubMusicClient{}, fastConfig(3), fastConfig(3), nil)

	_, err := c.GenerateLyrics(context.Background(), []string{"夏"}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("generator calls = %d, want 1 (no retry of non-transient error)", len(gen.prompts))
	}
}

func TestGenerateMusicExtractsTopLevelURL(t *testing.T) {
	mc := &stubMusicClient{statuses: []jobs.Status{
		{State: jobs.StateCompleted, Result: jobs.Result{Raw: map[string]any{
			"video_url": "https://cdn/v.mp4",
			"audio_url": "https://cdn/a.mp3",
		}}},
	}}
	c := New(&stubGenerator{}, mc, fastConfig(3), fastConfig(3), nil)

	song, err := c.GenerateMusic(context.Background(), []string{"夏", "友情"}, "lyrics", nil)
	if err != nil {
		t.Fatalf("GenerateMusic() error = %v", err)
	}
	if song.VideoURL != "https://cdn/v.mp4" {
		t.Fatalf("VideoURL = %q, want top-level url", song.VideoURL)
	}
	if song.AudioURL != "https://cdn/a.mp3" {
		t.Fatalf("AudioURL = %q, want top-level url", song.AudioURL)
	}
	if mc.requests[0].Lyrics != "lyrics" {
		t.Fatalf("submitted lyrics = %q, want %q", mc.requests[0].Lyrics, "lyrics")
	}
	if mc.requests[0].Prompt != "夏, 友情" {
		t.Fatalf("submitted prompt = %q, want joined themes", mc.requests[0].Prompt)
	}
}

func TestGenerateMusicFallsBackToNestedAndClipURLs(t *testing.T) {
	nested := map[string]any{"data": map[string]any{"video_url": "https://cdn/nested.mp4"}}
	clips := map[string]any{"clips": []any{
		map[string]any{"video_url": "https://cdn/clip0.mp4"},
		map[string]any{"video_url": "https://cdn/clip1.mp4"},
	}}

	for _, tc := range []struct {
		raw  map[string]any
		want string
	}{
		{nested, "https://cdn/nested.mp4"},
		{clips, "https://cdn/clip0.mp4"},
	} {
		mc := &stubMusicClient{statuses: []jobs.Status{
			{State: jobs.StateCompleted, Result: jobs.Result{Raw: tc.raw}},
		}}
		c := New(&stubGenerator{}, mc, fastConfig(3), fastConfig(3), nil)
		song, err := c.GenerateMusic(context.Background(), []string{"夏"}, "lyrics", nil)
		if err != nil {
			t.Fatalf("GenerateMusic() error = %v", err)
		}
		if song.VideoURL != tc.want {
			t.Fatalf("VideoURL = %q, want %q", song.VideoURL, tc.want)
		}
	}
}

func TestGenerateMusicNoURLIsTerminalFailure(t *testing.T) {
	mc := &stubMusicClient{statuses: []jobs.Status{
		{State: jobs.StateCompleted, Result: jobs.Result{Raw: map[string]any{"status": "complete"}}},
	}}
	c := New(&stubGenerator{}, mc, fastConfig(3), fastConfig(3), nil)

	_, err := c.GenerateMusic(context.Background(), []string{"夏"}, "lyrics", nil)
	if !errors.Is(err, ErrNoMediaURL) {
		t.Fatalf("error = %v, want ErrNoMediaURL", err)
	}
}

func TestGenerateMusicTimesOutWithBoundedPolls(t *testing.T) {
	mc := &stubMusicClient{statuses: []jobs.Status{
		{State: jobs.StateRunning, Progress: 10},
	}}
	c := New(&stubGenerator{}, mc, fastConfig(3), fastConfig(3), nil)

	_, err := c.GenerateMusic(context.Background(), []string{"夏"}, "lyrics", nil)
	if !errors.Is(err, jobs.ErrTimedOut) {
		t.Fatalf("error = %v, want ErrTimedOut", err)
	}
	if mc.submits != 1 {
		t.Fatalf("submits = %d, want 1", mc.submits)
	}
}
