// Package server exposes the mixer over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/config"
	"github.com/satindergrewal/automix/internal/mixer"
	"github.com/satindergrewal/automix/internal/stream"
	"github.com/satindergrewal/automix/internal/transition"
)

// Server holds the handlers' shared dependencies.
type Server struct {
	log *zap.SugaredLogger
	cfg config.Config

	mixer       *mixer.Mixer
	pipeline    *audio.Pipeline
	broadcaster *stream.Broadcaster
	httpStream  http.Handler
	webrtc      *stream.WebRTCHandler
}

// New creates the API server.
func New(
	log *zap.SugaredLogger,
	cfg config.Config,
	m *mixer.Mixer,
	pipeline *audio.Pipeline,
	broadcaster *stream.Broadcaster,
	httpStream *stream.HTTPHandler,
	webrtc *stream.WebRTCHandler,
) *Server {
	return &Server{
		log:         log,
		cfg:         cfg,
		mixer:       m,
		pipeline:    pipeline,
		broadcaster: broadcaster,
		httpStream:  httpStream,
		webrtc:      webrtc,
	}
}

// Router registers every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/strategies", s.strategies).Methods(http.MethodGet)
	api.HandleFunc("/evaluate", s.evaluate).Methods(http.MethodPost)
	api.HandleFunc("/mix", s.mix).Methods(http.MethodPost)
	api.HandleFunc("/output/{file}", s.output).Methods(http.MethodGet)
	api.HandleFunc("/preview/skip", s.skip).Methods(http.MethodPost)
	api.HandleFunc("/preview/{file}", s.preview).Methods(http.MethodPost)
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)

	r.Handle("/stream", s.httpStream).Methods(http.MethodGet)
	r.Handle("/offer", s.webrtc).Methods(http.MethodPost, http.MethodOptions)

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK"})
}

func (s *Server) strategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": transition.Catalogue(),
		"curves":     transition.Curves(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// fail maps mixer errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unknown *transition.UnknownStrategyError
		decode  *audio.DecodeError
		encode  *audio.EncodeError
		upload  *uploadError
		status  = http.StatusInternalServerError
	)
	switch {
	case errors.As(err, &upload):
		status = http.StatusBadRequest
	case errors.As(err, &unknown):
		status = http.StatusBadRequest
	case errors.As(err, &decode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, mixer.ErrEmptyPlaylist):
		status = http.StatusBadRequest
	case errors.As(err, &encode):
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		s.log.Errorw("Request failed", "path", r.URL.Path, "error", err)
	} else {
		s.log.Infow("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
