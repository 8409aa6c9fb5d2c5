package server_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voxgate/voxgate/pkg/provider/stt"
)

func postTranscription(t *testing.T, f *fixture, filename, modelName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.WriteField("model", modelName); err != nil {
		t.Fatalf("write model field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/oai/v1/audio/transcriptions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestTranscriptions_StreamsDeltas(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stt.Events = []stt.Event{
		stt.SpeechStart{Timestamp: 0},
		stt.Transcription{Text: "hello", Timestamp: 1},
		stt.Transcription{Text: "world", Timestamp: 2},
	}

	rec := postTranscription(t, f, "clip.wav", "parakeet", []byte("RIFFdata"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	want := []string{`{"delta":"hello"}`, `{"delta":"world"}`}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %d", lines, len(want))
	}
	for i, l := range lines {
		if l != want[i] {
			t.Errorf("line %d = %q, want %q", i, l, want[i])
		}
	}

	// One latency sample per transcription event.
	if got := f.histogramCount(t, "voxgate.stt.duration"); got != 2 {
		t.Errorf("stt duration samples = %d, want 2", got)
	}
}

func TestTranscriptions_FeedsUploadToDecoder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	step := make(chan struct{})
	f.stt.KeepAudio = true
	f.stt.Step = step
	f.stt.Events = []stt.Event{stt.Transcription{Text: "ok", Timestamp: 1}}

	joined := func() string {
		var got []byte
		for _, fr := range f.stt.AudioFrames() {
			got = append(got, fr...)
		}
		return string(got)
	}

	// Hold the transcription back until the upload has flowed through the
	// decoder into the provider, then let the handler finish.
	go func() {
		deadline := time.After(10 * time.Second)
		for joined() != "oggs-payload" {
			select {
			case <-deadline:
				close(step)
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
		step <- struct{}{}
	}()

	rec := postTranscription(t, f, "clip.ogg", "parakeet", []byte("oggs-payload"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	// The pass-through codec hands the upload to the provider unchanged.
	if got := joined(); got != "oggs-payload" {
		t.Errorf("decoded audio = %q", got)
	}
}

func TestTranscriptions_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		filename   string
		model      string
		wantStatus int
		wantType   string
	}{
		{
			name:       "unsupported extension",
			filename:   "clip.txt",
			model:      "parakeet",
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
		{
			name:       "unknown model",
			filename:   "clip.wav",
			model:      "whisper",
			wantStatus: http.StatusNotFound,
			wantType:   "model_not_found",
		},
		{
			name:       "non-stt model",
			filename:   "clip.wav",
			model:      "kokoro",
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			rec := postTranscription(t, f, tt.filename, tt.model, []byte("data"))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decodeError(t, rec.Body.String()).Error.Type; got != tt.wantType {
				t.Errorf("error type = %q, want %q", got, tt.wantType)
			}
		})
	}
}
