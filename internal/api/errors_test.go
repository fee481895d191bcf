package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liveinsync/rentd/internal/api"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	api.WriteError(rr, http.StatusConflict, api.ReasonInvalidTransition, "cannot do that")

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var env api.ErrorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != "Conflict" {
		t.Errorf("expected Conflict, got %s", env.Error.Code)
	}
	if env.Error.ReasonCode != api.ReasonInvalidTransition {
		t.Errorf("expected invalid_transition, got %s", env.Error.ReasonCode)
	}
	if env.Error.Message != "cannot do that" {
		t.Errorf("unexpected message: %s", env.Error.Message)
	}
}

func TestWriteHelpers(t *testing.T) {
	cases := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		reason string
	}{
		{"bad request", func(w http.ResponseWriter) { api.WriteBadRequest(w, api.ReasonMissingField, "m") }, http.StatusBadRequest, api.ReasonMissingField},
		{"unauthorized", func(w http.ResponseWriter) { api.WriteUnauthorized(w, api.ReasonSessionExpired, "m") }, http.StatusUnauthorized, api.ReasonSessionExpired},
		{"forbidden", func(w http.ResponseWriter) { api.WriteForbidden(w, "m") }, http.StatusForbidden, api.ReasonForbidden},
		{"not found", func(w http.ResponseWriter) { api.WriteNotFound(w, "m") }, http.StatusNotFound, api.ReasonNotFound},
		{"internal", func(w http.ResponseWriter) { api.WriteInternalError(w, "m") }, http.StatusInternalServerError, api.ReasonInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tc.write(rr)
			if rr.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, rr.Code)
			}
			var env api.ErrorEnvelope
			if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
				t.Fatal(err)
			}
			if env.Error.ReasonCode != tc.reason {
				t.Errorf("expected %s, got %s", tc.reason, env.Error.ReasonCode)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	api.WriteJSON(rr, http.StatusCreated, map[string]string{"id": "r1"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["id"] != "r1" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	api.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp api.HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected ok, got %s", resp.Status)
	}
}
