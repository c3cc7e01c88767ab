package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MikeSquared-Agency/recall/internal/anthropic"
	"github.com/MikeSquared-Agency/recall/internal/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func llmServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": reply}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 40, "output_tokens": 20},
		})
	}))
}

func userConversation(texts ...string) *memory.Conversation {
	conv := memory.NewConversation("alice")
	for i, text := range texts {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		conv.Append(memory.NewMessage(role, text))
	}
	return conv
}

func TestClassify_Success(t *testing.T) {
	server := llmServer(t, `{"event_type":"TRANSACTION","importance":0.9,"intent":"purchase_intent","reasoning":"wants to buy"}`)
	defer server.Close()

	llm := anthropic.NewClient("test-key")
	llm.SetTestTransport(server.URL)
	c := New(llm, "test-model", discardLogger())

	got, err := c.Classify(context.Background(), userConversation("I want to buy the red phone"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EventType != memory.EventTransaction {
		t.Errorf("event type = %q, want TRANSACTION", got.EventType)
	}
	if got.Importance != 0.9 {
		t.Errorf("importance = %g, want 0.9", got.Importance)
	}
	if got.Intent != "purchase_intent" {
		t.Errorf("intent = %q, want purchase_intent", got.Intent)
	}
}

func TestClassify_StripsMarkdownFences(t *testing.T) {
	server := llmServer(t, "```json\n{\"event_type\":\"GENERIC_EVENT\",\"importance\":0.2,\"intent\":\"greet\",\"reasoning\":\"hello\"}\n```")
	defer server.Close()

	llm := anthropic.NewClient("test-key")
	llm.SetTestTransport(server.URL)
	c := New(llm, "test-model", discardLogger())

	got, err := c.Classify(context.Background(), userConversation("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EventType != memory.EventGeneric || got.Intent != "greet" {
		t.Errorf("unexpected classification: %+v", got)
	}
}

func TestClassify_InvalidResults(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "I think this is a purchase"},
		{"empty event type", `{"event_type":"","importance":0.5,"intent":"x"}`},
		{"unknown event type", `{"event_type":"PARTY","importance":0.5,"intent":"x"}`},
		{"importance above range", `{"event_type":"INQUIRY","importance":1.5,"intent":"x"}`},
		{"importance below range", `{"event_type":"INQUIRY","importance":-0.1,"intent":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := llmServer(t, tt.reply)
			defer server.Close()

			llm := anthropic.NewClient("test-key")
			llm.SetTestTransport(server.URL)
			c := New(llm, "test-model", discardLogger())

			_, err := c.Classify(context.Background(), userConversation("hello"))
			if err == nil {
				t.Fatal("expected error")
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Errorf("expected *classifier.Error, got %T", err)
			}
		})
	}
}

func TestClassify_APIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	llm := anthropic.NewClient("test-key")
	llm.SetTestTransport(server.URL)
	c := New(llm, "test-model", discardLogger())

	_, err := c.Classify(context.Background(), userConversation("hello"))
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Errorf("expected *classifier.Error, got %v", err)
	}
}

func TestClassify_NoUserMessage(t *testing.T) {
	llm := anthropic.NewClient("test-key")
	c := New(llm, "test-model", discardLogger())

	conv := memory.NewConversation("alice")
	conv.Append(memory.NewMessage(memory.RoleSystem, "history seed"))

	_, err := c.Classify(context.Background(), conv)
	if err == nil {
		t.Fatal("expected error for conversation without a user message")
	}
}

func TestChatMessages_SeparatesSeed(t *testing.T) {
	conv := memory.NewConversation("bob")
	conv.Append(memory.NewMessage(memory.RoleSystem, "returning customer"))
	conv.Append(memory.NewMessage(memory.RoleUser, "hello again"))

	messages, seed := chatMessages(conv)
	if seed != "returning customer" {
		t.Errorf("seed = %q", seed)
	}
	if len(messages) != 1 || messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", messages)
	}
}

func TestChatMessages_WindowsLongConversations(t *testing.T) {
	conv := memory.NewConversation("bob")
	for i := 0; i < 19; i++ {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		conv.Append(memory.NewMessage(role, "turn"))
	}

	messages, _ := chatMessages(conv)
	if len(messages) > contextWindow+1 {
		t.Errorf("expected at most %d messages, got %d", contextWindow+1, len(messages))
	}
	if messages[0].Role != "user" {
		t.Errorf("windowed payload starts with %q, must start with a user turn", messages[0].Role)
	}
}

func TestChatMessages_SeedSurvivesLongConversations(t *testing.T) {
	conv := memory.NewConversation("bob")
	conv.Append(memory.NewMessage(memory.RoleSystem, "returning customer"))
	for i := 0; i < 20; i++ {
		conv.Append(memory.NewMessage(memory.RoleUser, "question"))
		conv.Append(memory.NewMessage(memory.RoleAssistant, "answer"))
	}
	conv.Append(memory.NewMessage(memory.RoleUser, "one more thing"))

	messages, seed := chatMessages(conv)
	if seed != "returning customer" {
		t.Errorf("seed = %q, want the full-conversation seed", seed)
	}
	if len(messages) == 0 || messages[0].Role != "user" {
		t.Fatalf("unexpected windowed messages: %+v", messages)
	}
	if messages[len(messages)-1].Content != "one more thing" {
		t.Errorf("last message = %q, want the newest user turn", messages[len(messages)-1].Content)
	}
}

func TestClassify_WarmSessionPastWindow(t *testing.T) {
	var gotFirstRole string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) > 0 {
			gotFirstRole = req.Messages[0].Role
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": `{"event_type":"INQUIRY","importance":0.4,"intent":"inquiry_intent","reasoning":"follow-up"}`}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	llm := anthropic.NewClient("test-key")
	llm.SetTestTransport(server.URL)
	c := New(llm, "test-model", discardLogger())

	// Warm session: seed, three complete turns, then a fresh user message.
	conv := memory.NewConversation("alice")
	conv.Append(memory.NewMessage(memory.RoleSystem, "returning customer"))
	for i := 0; i < 3; i++ {
		conv.Append(memory.NewMessage(memory.RoleUser, "question"))
		conv.Append(memory.NewMessage(memory.RoleAssistant, "answer"))
	}
	conv.Append(memory.NewMessage(memory.RoleUser, "and one more question"))

	if _, err := c.Classify(context.Background(), conv); err != nil {
		t.Fatalf("warm session past the window should still classify: %v", err)
	}
	if gotFirstRole != "user" {
		t.Errorf("first role sent to API = %q, want user", gotFirstRole)
	}
}
