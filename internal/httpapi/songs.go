package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okubo-r/seika/internal/archive"
)

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	if s.songs == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "song archive not configured")
		return
	}

	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer in [1, 200]")
			return
		}
		limit = n
	}

	songs, err := s.songs.RecentSongs(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	if songs == nil {
		songs = []archive.SongRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	if s.songs == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "song archive not configured")
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_song_id", "missing song id")
		return
	}

	song, err := s.songs.GetSong(r.Context(), id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			respondError(w, http.StatusNotFound, "song_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, song)
}
