package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/recall/internal/memory"
	"github.com/MikeSquared-Agency/recall/internal/orchestrator"
	"github.com/MikeSquared-Agency/recall/internal/router"
)

type fakeChat struct {
	calls int
	turn  *orchestrator.Turn
}

func (f *fakeChat) Handle(_ context.Context, _, _ string) *orchestrator.Turn {
	f.calls++
	return f.turn
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(8760, &fakeChat{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := NewServer(8760, &fakeChat{})

	req := httptest.NewRequest("GET", "/api/v1/recall/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "recall" {
		t.Errorf("expected agent recall, got %q", body["agent"])
	}
}

func TestChatEndpoint(t *testing.T) {
	chat := &fakeChat{turn: &orchestrator.Turn{
		Reply: "Welcome back!",
		Classification: &memory.Classification{
			EventType:  memory.EventInquiry,
			Importance: 0.3,
			Intent:     "greet",
		},
		Decision: router.Decision{
			Rule:       "minimal",
			Tokens:     550,
			FullTokens: 1550,
			Saved:      0.645,
		},
	}}
	srv := NewServer(8760, chat)

	body := strings.NewReader(`{"user_id": "user-1", "message": "hi"}`)
	req := httptest.NewRequest("POST", "/api/v1/chat", body)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if chat.calls != 1 {
		t.Errorf("chat handler called %d times, want 1", chat.calls)
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reply != "Welcome back!" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.Rule != "minimal" || resp.EstimatedTokens != 550 {
		t.Errorf("routing telemetry = %+v", resp)
	}
	if resp.Intent != "greet" || resp.EventType != string(memory.EventInquiry) {
		t.Errorf("classification telemetry = %+v", resp)
	}
}

func TestChatEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not json"},
		{"missing user_id", `{"message": "hi"}`},
		{"missing message", `{"user_id": "user-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{}
			srv := NewServer(8760, chat)

			req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if chat.calls != 0 {
				t.Error("bad request should not reach the orchestrator")
			}
		})
	}
}

func TestChatEndpoint_FallbackTurn(t *testing.T) {
	chat := &fakeChat{turn: &orchestrator.Turn{
		Reply:    "Sorry, something went wrong on my end.",
		Decision: router.Decision{Rule: router.RuleFull},
		Fallback: true,
	}}
	srv := NewServer(8760, chat)

	body := strings.NewReader(`{"user_id": "user-2", "message": "hello?"}`)
	req := httptest.NewRequest("POST", "/api/v1/chat", body)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("fallback turn should still be 200, got %d", w.Code)
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Fallback {
		t.Error("fallback flag not reported")
	}
	if resp.EventType != "" || resp.Intent != "" {
		t.Errorf("failed classification should be omitted, got %+v", resp)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := NewServer(8760, &fakeChat{})

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
