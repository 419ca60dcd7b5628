package httpapi

import (
	"io"
	"net/http"
)

// Recorded answers from the browser are short webm/opus clips; 10 MiB is
// generous headroom.
const maxTranscribeBytes = 10 << 20

// handleTranscribe accepts one recorded audio clip as multipart form data
// and returns its transcription. The websocket interview does not depend
// on this endpoint; clients that transcribe server-side post here and then
// send the text as a normal answer.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "transcriber not configured")
		return
	}

	if err := r.ParseMultipartForm(maxTranscribeBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_file", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxTranscribeBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read_failed", err.Error())
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ProviderErrors.WithLabelValues("stt", "transcribe").Inc()
		}
		respondError(w, http.StatusBadGateway, "transcription_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"transcription": text})
}
