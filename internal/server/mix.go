package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/mixer"
)

var errMissingTrack = errors.New("both track_a and track_b are required")

// uploadError is a malformed upload. Failures writing a valid upload to disk
// are not uploadErrors and answer 500.
type uploadError struct {
	err error
}

func (e *uploadError) Error() string { return e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

// uploads holds the request's two tracks on disk until cleanup.
type uploads struct {
	a, b string
}

func (u uploads) remove() {
	os.Remove(u.a)
	os.Remove(u.b)
}

// receive parses a multipart pair upload and stores both files under uuid names.
func (s *Server) receive(w http.ResponseWriter, r *http.Request) (uploads, error) {
	limit := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return uploads{}, &uploadError{fmt.Errorf("parse upload: %w", err)}
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return uploads{}, fmt.Errorf("create upload dir: %w", err)
	}

	a, err := s.store(r, "track_a")
	if err != nil {
		return uploads{}, err
	}
	b, err := s.store(r, "track_b")
	if err != nil {
		os.Remove(a)
		return uploads{}, err
	}
	return uploads{a: a, b: b}, nil
}

func (s *Server) store(r *http.Request, field string) (string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", &uploadError{errMissingTrack}
	}
	defer f.Close()

	ext := filepath.Ext(hdr.Filename)
	if !audio.IsAudioFile(hdr.Filename) {
		return "", &uploadError{fmt.Errorf("%s: unsupported file type %q", field, ext)}
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+ext)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", field, err)
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("save %s: %w", field, err)
	}
	return path, out.Close()
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	up, err := s.receive(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer up.remove()

	res, err := s.mixer.EvaluateCompatibility(r.Context(), up.a, up.b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type mixResponse struct {
	*mixer.Result
	ID       string `json:"id"`
	Download string `json:"download"`
}

func (s *Server) mix(w http.ResponseWriter, r *http.Request) {
	up, err := s.receive(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer up.remove()

	hint, err := parseSeconds(r.FormValue("transition_duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	name := fmt.Sprintf("mix_%s.%s", id, s.cfg.OutputFormat)
	res, err := s.mixer.Mix(r.Context(), mixer.Request{
		TrackA:             up.a,
		TrackB:             up.b,
		Strategy:           r.FormValue("strategy"),
		TransitionDuration: hint,
		Output:             filepath.Join(s.cfg.OutputDir, name),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.Infow("Mix rendered", "id", id, "strategy", res.Strategy, "duration", res.Duration)
	res.TrackA, res.TrackB, res.Output = "", "", name
	writeJSON(w, http.StatusOK, mixResponse{Result: res, ID: id, Download: "/api/output/" + name})
}

// parseSeconds reads an optional duration in seconds. Empty means none.
func parseSeconds(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("transition_duration must be a non-negative number of seconds, got %q", v)
	}
	return time.Duration(f * float64(time.Second)), nil
}
