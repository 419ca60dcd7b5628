// Package pipeline sequences the two generation stages of one session:
// lyrics first, then music, both driven through the async job poller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okubo-r/seika/internal/jobs"
	"github.com/okubo-r/seika/internal/music"
	"github.com/okubo-r/seika/internal/observability"
	"github.com/okubo-r/seika/internal/textgen"
)

// Prompt skeleton for the lyric model. Themes are appended in interview
// order, joined with ", ".
const lyricsPromptTemplate = `以下の単語をテーマにして、青春をテーマにしたJ-POPの歌詞を作成してください。
曲の構成は以下のようにしてください。

<Verse 1>
(1番の歌詞。青春時代の情景や感情を描写。4行程度）

<Verse 2>
(2番の歌詞。青春時代の別の側面や展開を描写。4行程度）

<Chorus>
(サビの歌詞。メッセージや感情の高まりを表現。4-6行程度）

テーマの単語：%s`

const themeSeparator = ", "

// JobBackedGenerator is implemented by lyric backends that run as remote
// jobs instead of one synchronous call.
type JobBackedGenerator interface {
	SubmitLyrics(ctx context.Context, prompt string) (string, error)
	LyricsStatus(ctx context.Context, id string) (jobs.Status, error)
}

// SongResult is the terminal payload of a finished pipeline.
type SongResult struct {
	VideoURL string
	AudioURL string
}

var ErrNoMediaURL = errors.New("music job result carried no media url")

type Coordinator struct {
	generator   textgen.Generator
	musicClient music.Client
	lyricsCfg   jobs.Config
	musicCfg    jobs.Config
	metrics     *observability.Metrics
}

func New(generator textgen.Generator, musicClient music.Client, lyricsCfg, musicCfg jobs.Config, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		generator:   generator,
		musicClient: musicClient,
		lyricsCfg:   lyricsCfg,
		musicCfg:    musicCfg,
		metrics:     metrics,
	}
}

// BuildLyricsPrompt combines the interview themes, order preserved, into
// one generation prompt.
func BuildLyricsPrompt(themes []string) string {
	return fmt.Sprintf(lyricsPromptTemplate, strings.Join(themes, themeSeparator))
}

// GenerateLyrics runs the lyrics stage. Synchronous backends are wrapped as
// a single-shot already-complete job so the poller semantics (cancellation,
// budgets, observer) apply uniformly.
func (c *Coordinator) GenerateLyrics(ctx context.Context, themes []string, observer func(progress int)) (string, error) {
	prompt := BuildLyricsPrompt(themes)

	var spec jobs.Spec
	if backend, ok := c.generator.(JobBackedGenerator); ok {
		spec = jobs.Spec{
			Kind: jobs.KindLyrics,
			Submit: func(ctx context.Context) (jobs.Handle, error) {
				id, err := backend.SubmitLyrics(ctx, prompt)
				if err != nil {
					return jobs.Handle{}, err
				}
				return jobs.Handle{ID: id}, nil
			},
			Poll: func(ctx context.Context, h jobs.Handle) (jobs.Status, error) {
				c.countPoll(jobs.KindLyrics)
				return backend.LyricsStatus(ctx, h.ID)
			},
			Observer: observer,
		}
	} else {
		spec = c.singleShotLyricsSpec(prompt, observer)
	}

	result, err := c.runJob(ctx, spec, c.lyricsCfg)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// GenerateMusic runs the music stage. It must only be called after the
// lyrics stage reached terminal success.
func (c *Coordinator) GenerateMusic(ctx context.Context, themes []string, lyrics string, observer func(progress int)) (SongResult, error) {
	req := music.Request{
		Prompt: strings.Join(themes, themeSeparator),
		Lyrics: lyrics,
		Title:  "青春ソング",
		Tags:   "j-pop, youthful",
	}

	spec := jobs.Spec{
		Kind: jobs.KindMusic,
		Submit: func(ctx context.Context) (jobs.Handle, error) {
			id, err := c.musicClient.Submit(ctx, req)
			if err != nil {
				return jobs.Handle{}, err
			}
			return jobs.Handle{ID: id}, nil
		},
		Poll: func(ctx context.Context, h jobs.Handle) (jobs.Status, error) {
			c.countPoll(jobs.KindMusic)
			return c.musicClient.Status(ctx, h.ID)
		},
		Observer: observer,
	}

	result, err := c.runJob(ctx, spec, c.musicCfg)
	if err != nil {
		return SongResult{}, err
	}

	song, ok := extractSong(result.Raw)
	if !ok {
		return SongResult{}, ErrNoMediaURL
	}
	return song, nil
}

// singleShotLyricsSpec adapts a synchronous generator to the job contract:
// submit performs the call, the first poll reports it already complete.
func (c *Coordinator) singleShotLyricsSpec(prompt string, observer func(progress int)) jobs.Spec {
	var text string
	return jobs.Spec{
		Kind: jobs.KindLyrics,
		Submit: func(ctx context.Context) (jobs.Handle, error) {
			out, err := c.generator.Generate(ctx, prompt)
			if err != nil {
				return jobs.Handle{}, err
			}
			text = out
			return jobs.Handle{ID: "sync"}, nil
		},
		Poll: func(context.Context, jobs.Handle) (jobs.Status, error) {
			c.countPoll(jobs.KindLyrics)
			return jobs.Status{State: jobs.StateCompleted, Result: jobs.Result{Text: text}}, nil
		},
		Observer: observer,
	}
}

func (c *Coordinator) runJob(ctx context.Context, spec jobs.Spec, cfg jobs.Config) (jobs.Result, error) {
	start := time.Now()
	result, err := jobs.Run(ctx, spec, cfg)
	c.countOutcome(spec.Kind, err)
	if c.metrics != nil {
		c.metrics.ObserveGeneration(string(spec.Kind), time.Since(start))
	}
	return result, err
}

func (c *Coordinator) countPoll(kind jobs.Kind) {
	if c.metrics != nil {
		c.metrics.JobPolls.WithLabelValues(string(kind)).Inc()
	}
}

func (c *Coordinator) countOutcome(kind jobs.Kind, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "completed"
	switch {
	case errors.Is(err, jobs.ErrCanceled):
		outcome = "canceled"
	case errors.Is(err, jobs.ErrTimedOut):
		outcome = "timed_out"
	case err != nil:
		outcome = "failed"
	}
	c.metrics.JobOutcomes.WithLabelValues(string(kind), outcome).Inc()
}

// extractSong pulls the media URLs out of the provider payload. Providers
// disagree about the shape, so three locations are tried in order: a
// top-level field, a nested data object, then the first of a clips list.
func extractSong(raw map[string]any) (SongResult, bool) {
	if raw == nil {
		return SongResult{}, false
	}
	if song, ok := songFrom(raw); ok {
		return song, true
	}
	if data, ok := raw["data"].(map[string]any); ok {
		if song, ok := songFrom(data); ok {
			return song, true
		}
	}
	for _, key := range []string{"clips", "variants", "results"} {
		list, ok := raw[key].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		if entry, ok := list[0].(map[string]any); ok {
			if song, ok := songFrom(entry); ok {
				return song, true
			}
		}
	}
	return SongResult{}, false
}

func songFrom(obj map[string]any) (SongResult, bool) {
	video, _ := obj["video_url"].(string)
	if strings.TrimSpace(video) == "" {
		return SongResult{}, false
	}
	audio, _ := obj["audio_url"].(string)
	return SongResult{VideoURL: strings.TrimSpace(video), AudioURL: strings.TrimSpace(audio)}, true
}
