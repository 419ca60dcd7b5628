package archive

import (
	"context"
	"time"
)

// SongRecord is one finished interview-to-song run.
type SongRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Themes    []string  `json:"themes"`
	Lyrics    string    `json:"lyrics"`
	VideoURL  string    `json:"video_url"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists finished songs. Saves are best-effort for callers: a
// failed save never fails the session that produced the song.
type Store interface {
	SaveSong(ctx context.Context, record SongRecord) error
	RecentSongs(ctx context.Context, limit int) ([]SongRecord, error)
	GetSong(ctx context.Context, id string) (SongRecord, error)
	Close() error
}
