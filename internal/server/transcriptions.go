package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/stt"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to disk.
const maxUploadMemory = 32 << 20

// uploadReadSize is the granularity uploaded audio is fed to the decoder.
const uploadReadSize = 32 << 10

// allowedUploadExts lists the file extensions accepted for transcription.
var allowedUploadExts = map[string]struct{}{
	"wav": {}, "mp3": {}, "ogg": {}, "flac": {}, "opus": {},
}

// handleTranscriptions serves POST /oai/v1/audio/transcriptions: a multipart
// upload decoded through ffmpeg into the STT model, answered as a stream of
// JSON lines, one per transcription event.
func (s *Server) handleTranscriptions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation, `a "file" part is required`)
		return
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if _, ok := allowedUploadExts[ext]; !ok {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"unsupported file extension "+ext)
		return
	}

	set, err := s.registry.Resolve(r.FormValue("model"))
	if err != nil {
		writeResolveError(w, err)
		return
	}
	if set.STT == nil || set.LLM != nil || set.TTS != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"audio/transcriptions requires exactly one stt model")
		return
	}
	rec := set.STT.Record

	provider, err := s.sttFor(set.STT)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}
	if s.codec == nil {
		writeError(w, http.StatusInternalServerError, errInternal, "audio decoder unavailable")
		return
	}

	ctx := r.Context()

	raw := make(chan []byte, 8)
	decoded, err := s.codec.Decode(ctx, raw)
	if err != nil {
		close(raw)
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}
	events, err := provider.StreamTranscribe(ctx, decoded)
	if err != nil {
		close(raw)
		s.metrics.RecordUpstreamError(ctx, rec.ResolveName, "stt")
		writeUpstreamError(w, err)
		return
	}
	s.metrics.RecordUpstreamRequest(ctx, rec.ResolveName, "stt", "stream")
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

	// Feed the upload into the decoder; closing raw flushes the decoder and
	// lets the STT stream finalize its last utterance.
	go func() {
		defer close(raw)
		for {
			buf := make([]byte, uploadReadSize)
			n, err := file.Read(buf)
			if n > 0 {
				select {
				case raw <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					slog.Warn("upload read failed", "err", err)
				}
				return
			}
		}
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	last := time.Now()

	for ev := range events {
		switch e := ev.(type) {
		case stt.Transcription:
			s.metrics.RecordSTTEvent(ctx, rec.ResolveName, time.Since(last))
			last = time.Now()
			if err := enc.Encode(oai.TranscriptionDelta{Delta: e.Text}); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case stt.StreamError:
			slog.Error("stt stream failed mid-flight", "model", rec.ResolveName, "err", e.Err)
			return
		}
	}
}
