package archive

import (
	"context"
	"log"
	"strings"
)

// NewStore picks the song store from configuration: postgres when a database
// URL is set, otherwise an in-memory store that forgets songs on restart.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		log.Printf("song archive: in-memory (no database configured)")
		return NewInMemoryStore(), nil
	}
	store, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	log.Printf("song archive: postgres")
	return store, nil
}
