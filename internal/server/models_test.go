package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxgate/voxgate/pkg/oai"
)

func TestModels_ReportsStatusForAll(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.markStopped(t, "qwen3-4b")

	req := httptest.NewRequest("GET", "/v0/models", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var out struct {
		Object string `json:"object"`
		Data   []struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			Created int64  `json:"created"`
			Status  struct {
				PingOK    bool    `json:"ping_ok"`
				RequestOK bool    `json:"request_ok"`
				Error     *string `json:"error"`
				Running   bool    `json:"running"`
			} `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if out.Object != "list" || len(out.Data) != 4 {
		t.Fatalf("object = %q, models = %d", out.Object, len(out.Data))
	}

	byID := map[string]bool{}
	for _, m := range out.Data {
		if m.Object != "model" {
			t.Errorf("model %s object = %q", m.ID, m.Object)
		}
		if m.Created == 0 {
			t.Errorf("model %s created = 0", m.ID)
		}
		byID[m.ID] = m.Status.Running
	}
	if !byID["gpt-oss-20b"] || !byID["kokoro"] || !byID["parakeet"] {
		t.Errorf("running flags = %v", byID)
	}
	if byID["qwen3-4b"] {
		t.Error("stopped model reported as running")
	}
}

func TestModels_OAIListsRunningOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.markStopped(t, "qwen3-4b")

	req := httptest.NewRequest("GET", "/oai/v1/models", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var out oai.ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(out.Data) != 3 {
		t.Fatalf("models = %d, want 3: %+v", len(out.Data), out.Data)
	}
	for _, m := range out.Data {
		if m.ID == "qwen3-4b" {
			t.Error("stopped model listed")
		}
		if m.OwnedBy != "voxgate" {
			t.Errorf("owned_by = %q", m.OwnedBy)
		}
	}
}
