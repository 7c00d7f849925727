package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/satindergrewal/automix/internal/audio"
)

// HTTPHandler serves the preview as a chunked MP3 stream. Each connection
// runs its own ffmpeg process encoding PCM to MP3 in real time.
type HTTPHandler struct {
	log         *zap.SugaredLogger
	broadcaster *Broadcaster
	ffmpeg      string
	name        string
}

// NewHTTPHandler creates an HTTP stream handler. ffmpeg is the encoder binary.
func NewHTTPHandler(log *zap.SugaredLogger, b *Broadcaster, ffmpeg string) *HTTPHandler {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &HTTPHandler{log: log, broadcaster: b, ffmpeg: ffmpeg, name: "automix preview"}
}

// mp3Args reads interleaved s16le PCM on stdin and writes MP3 on stdout.
func mp3Args() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, h.ffmpeg, mp3Args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.log.Errorw("HTTP stream stdin pipe failed", "error", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.log.Errorw("HTTP stream stdout pipe failed", "error", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := cmd.Start(); err != nil {
		h.log.Errorw("HTTP stream encoder failed to start", "ffmpeg", h.ffmpeg, "error", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		cancel()
		cmd.Wait()
	}()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", h.name)

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.log.Infow("HTTP listener connected", "remote", r.RemoteAddr, "listeners", h.broadcaster.ListenerCount())
	defer h.log.Infow("HTTP listener disconnected", "remote", r.RemoteAddr)

	go feedPCM(ctx, stdin, listener)

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.log.Warnw("HTTP stream encoder read failed", "error", err)
			}
			return
		}
	}
}

// feedPCM writes listener frames to the encoder until either side stops.
func feedPCM(ctx context.Context, stdin io.WriteCloser, l *Listener) {
	defer stdin.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
		}
	}
}
