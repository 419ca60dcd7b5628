package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("song not found")

// PostgresStore persists finished songs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS songs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			themes TEXT NOT NULL,
			lyrics TEXT NOT NULL,
			video_url TEXT NOT NULL,
			audio_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_songs_created ON songs (created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveSong(ctx context.Context, record SongRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO songs (id, session_id, title, themes, lyrics, video_url, audio_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID,
		record.SessionID,
		record.Title,
		joinThemes(record.Themes),
		record.Lyrics,
		record.VideoURL,
		record.AudioURL,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save song: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentSongs(ctx context.Context, limit int) ([]SongRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, title, themes, lyrics, video_url, audio_url, created_at
		 FROM songs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent songs: %w", err)
	}
	defer rows.Close()

	items := make([]SongRecord, 0, limit)
	for rows.Next() {
		r, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate song rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSong(ctx context.Context, id string) (SongRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, title, themes, lyrics, video_url, audio_url, created_at
		 FROM songs WHERE id=$1`,
		id,
	)
	r, err := scanSong(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SongRecord{}, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (SongRecord, error) {
	var r SongRecord
	var themes string
	if err := row.Scan(&r.ID, &r.SessionID, &r.Title, &themes, &r.Lyrics, &r.VideoURL, &r.AudioURL, &r.CreatedAt); err != nil {
		return SongRecord{}, fmt.Errorf("scan song row: %w", err)
	}
	r.Themes = splitThemes(themes)
	return r, nil
}

// Themes are a short flat list; a delimited column keeps the schema plain.
const themeDelimiter = "\x1f"

func joinThemes(themes []string) string {
	return strings.Join(themes, themeDelimiter)
}

func splitThemes(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, themeDelimiter)
}
