// Package api exposes the chat pipeline over HTTP for direct callers and
// local testing; production traffic normally arrives over the bus.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/recall/internal/orchestrator"
)

// Chat is the turn pipeline behind POST /api/v1/chat.
type Chat interface {
	Handle(ctx context.Context, userID, text string) *orchestrator.Turn
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply           string  `json:"reply"`
	EventType       string  `json:"event_type,omitempty"`
	Intent          string  `json:"intent,omitempty"`
	Importance      float64 `json:"importance,omitempty"`
	Rule            string  `json:"rule"`
	EstimatedTokens int     `json:"estimated_tokens"`
	Saved           float64 `json:"saved"`
	Persisted       bool    `json:"persisted"`
	Fallback        bool    `json:"fallback"`
}

type Server struct {
	router *chi.Mux
	chat   Chat
	port   int
}

func NewServer(port int, chat Chat) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		chat:   chat,
		port:   port,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/recall/status", s.status)
	router.Post("/api/v1/chat", s.handleChat)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"agent":  "recall",
		"status": "active",
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"invalid JSON: %v"}`, err), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, `{"error":"user_id is required"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	turn := s.chat.Handle(r.Context(), req.UserID, req.Message)

	resp := chatResponse{
		Reply:           turn.Reply,
		Rule:            turn.Decision.Rule,
		EstimatedTokens: turn.Decision.Tokens,
		Saved:           turn.Decision.Saved,
		Persisted:       turn.Persisted,
		Fallback:        turn.Fallback,
	}
	if turn.Classification != nil {
		resp.EventType = string(turn.Classification.EventType)
		resp.Intent = turn.Classification.Intent
		resp.Importance = turn.Classification.Importance
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
