package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxgate/voxgate/internal/model"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := NewHandler()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := NewHandler(
		Checker{Name: "models", Check: func(_ context.Context) error {
			return errors.New("no model is running")
		}},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["models"] != "fail: no model is running" {
		t.Errorf("models check = %q", body.Checks["models"])
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := NewHandler(
		Checker{Name: "models", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestModelsChecker(t *testing.T) {
	reg, err := model.NewRegistry([]model.Endpoint{
		{Name: "kokoro", Host: "localhost", Port: 9000},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	c := ModelsChecker(reg)

	if err := c.Check(context.Background()); err == nil {
		t.Error("checker should fail before any model is running")
	}

	m := reg.Models()[0]
	m.Status.SetPingOK(true)
	m.Status.SetRequestOK(true)

	if err := c.Check(context.Background()); err != nil {
		t.Errorf("checker failed with a running model: %v", err)
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := NewHandler(
		Checker{Name: "test", Check: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}
