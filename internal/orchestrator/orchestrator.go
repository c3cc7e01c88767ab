// Package orchestrator runs one conversation turn end to end: session
// lookup, classification, the importance gate, context routing, response
// generation, and the final session update.
package orchestrator

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/MikeSquared-Agency/recall/internal/gate"
	"github.com/MikeSquared-Agency/recall/internal/memory"
	"github.com/MikeSquared-Agency/recall/internal/router"
	"github.com/MikeSquared-Agency/recall/internal/session"
)

// Classifier is the external classification call. It must return importance
// in [0,1] and a non-empty event type, or an error.
type Classifier interface {
	Classify(ctx context.Context, conv *memory.Conversation) (memory.Classification, error)
}

// Responder is the external response generation call.
type Responder interface {
	Generate(ctx context.Context, conv *memory.Conversation, blocks []string) (string, error)
}

// Turn is the outcome of one processed user message. The reply is always
// populated — external failures are absorbed into the fallback text.
type Turn struct {
	Reply          string                 `json:"reply"`
	Classification *memory.Classification `json:"classification,omitempty"`
	Decision       router.Decision        `json:"decision"`
	Persisted      bool                   `json:"persisted"`
	Fallback       bool                   `json:"fallback"`
}

// lockShards sizes the striped user-lock table. Striping bounds memory at a
// fixed table regardless of how many distinct users the service sees.
const lockShards = 64

type Orchestrator struct {
	sessions   *session.Manager
	classifier Classifier
	gate       *gate.Gate
	router     *router.Router
	responder  Responder
	fallback   string
	logger     *slog.Logger

	locks [lockShards]sync.Mutex
}

func New(sessions *session.Manager, cl Classifier, g *gate.Gate, r *router.Router, re Responder, fallbackReply string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		classifier: cl,
		gate:       g,
		router:     r,
		responder:  re,
		fallback:   fallbackReply,
		logger:     logger,
	}
}

// Handle processes one user message. Turns for the same user are serialized
// on a striped lock so concurrent duplicates cannot race the session append;
// users on different stripes proceed independently.
func (o *Orchestrator) Handle(ctx context.Context, userID, text string) *Turn {
	lock := o.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	conv := o.sessions.Obtain(ctx, userID)
	conv = o.sessions.Append(ctx, conv, memory.NewMessage(memory.RoleUser, text))

	classification, err := o.classifier.Classify(ctx, conv)
	if err != nil {
		o.logger.Error("classification failed, replying with fallback", "user_id", userID, "error", err)
		return o.completeFallback(ctx, conv)
	}

	persisted := o.gate.Record(ctx, userID, classification)
	decision := o.router.Select(classification)

	o.logger.Info("turn routed",
		"user_id", userID,
		"event_type", string(classification.EventType),
		"intent", classification.Intent,
		"rule", decision.Rule,
		"estimated_tokens", decision.Tokens,
		"saved", decision.Saved,
		"persisted", persisted,
	)

	reply, err := o.responder.Generate(ctx, conv, decision.Blocks)
	fallback := false
	if err != nil {
		o.logger.Error("response generation failed, replying with fallback", "user_id", userID, "error", err)
		reply = o.fallback
		fallback = true
	}

	o.sessions.Append(ctx, conv, memory.NewMessage(memory.RoleAssistant, reply))

	return &Turn{
		Reply:          reply,
		Classification: &classification,
		Decision:       decision,
		Persisted:      persisted,
		Fallback:       fallback,
	}
}

// completeFallback finishes a turn whose classification failed: full-context
// decision, fallback reply, and the session still gets its assistant message
// so the conversation never stalls.
func (o *Orchestrator) completeFallback(ctx context.Context, conv *memory.Conversation) *Turn {
	decision := o.router.Select(memory.Classification{})
	o.sessions.Append(ctx, conv, memory.NewMessage(memory.RoleAssistant, o.fallback))
	return &Turn{
		Reply:    o.fallback,
		Decision: decision,
		Fallback: true,
	}
}

func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &o.locks[h.Sum32()%lockShards]
}
