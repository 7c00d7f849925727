package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/stream"
)

// outputPath resolves a rendered mix by name, refusing anything outside OutputDir.
func (s *Server) outputPath(r *http.Request) (string, bool) {
	name := mux.Vars(r)["file"]
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", false
	}
	path := filepath.Join(s.cfg.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

func (s *Server) output(w http.ResponseWriter, r *http.Request) {
	path, ok := s.outputPath(r)
	if !ok {
		writeError(w, http.StatusNotFound, "mix not found")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	path, ok := s.outputPath(r)
	if !ok {
		writeError(w, http.StatusNotFound, "mix not found")
		return
	}
	info := audio.TrackInfo{ID: uuid.NewString(), Name: filepath.Base(path), Path: path}
	if !s.pipeline.Enqueue(info) {
		writeError(w, http.StatusServiceUnavailable, "preview queue is full")
		return
	}
	s.log.Infow("Preview queued", "id", info.ID, "name", info.Name, "queue", s.pipeline.QueueSize())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":         true,
		"id":         info.ID,
		"queue_size": s.pipeline.QueueSize(),
	})
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request) {
	s.pipeline.Skip()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type statusResponse struct {
	TrackID         string       `json:"track_id"`
	TrackName       string       `json:"track_name"`
	Position        float64      `json:"position"`
	Duration        float64      `json:"duration"`
	QueueSize       int          `json:"queue_size"`
	Stream          stream.Stats `json:"stream"`
	WebRTCListeners int          `json:"webrtc_listeners"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	track, pos, dur := s.pipeline.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		TrackID:         track.ID,
		TrackName:       track.Name,
		Position:        pos.Seconds(),
		Duration:        dur.Seconds(),
		QueueSize:       s.pipeline.QueueSize(),
		Stream:          s.broadcaster.Stats(),
		WebRTCListeners: s.webrtc.PeerCount(),
	})
}
