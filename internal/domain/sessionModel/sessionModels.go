package sessionModel

import (
	"context"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
)

type Role string
type TurnStatus string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	StatusRecorded  TurnStatus = "recorded"
	StatusSucceeded TurnStatus = "succeeded"
	StatusFailed    TurnStatus = "failed"
)

// ErrSessionNotFound matches ragErrors.ErrNotFound as well.
var ErrSessionNotFound = ragErrors.New(ragErrors.KindNotFound, "session", "session not found", nil)

type Turn struct {
	Seq       int64                   `json:"seq"`
	Role      Role                    `json:"role"`
	Content   string                  `json:"content"`
	Citations []commonModels.Citation `json:"citations,omitempty"`
	Status    TurnStatus              `json:"status"`
	Error     string                  `json:"error,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type Session struct {
	Id        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	TurnCount int       `json:"turn_count"`
}

// Store is the durable append-only turn log.
// Append assigns the next sequence number and returns only once the turn is on stable storage.
type Store interface {
	Create(ctx context.Context, session Session) error
	Append(ctx context.Context, sessionId string, turn Turn) (int64, error)
	List(ctx context.Context) ([]Session, error)
	Get(ctx context.Context, sessionId string) (Session, []Turn, error)
	Delete(ctx context.Context, sessionId string) error
	Close() error
}

// Succeeded reports whether the turn belongs in prompt history.
func (t Turn) Succeeded() bool {
	if t.Role == RoleUser {
		return t.Status != StatusFailed
	}
	return t.Status == StatusSucceeded
}
