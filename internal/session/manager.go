// Package session owns conversation lifecycle on top of a durable turn log.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/internal/metrics"
	"github.com/akolanti/TranscriptRAG/internal/rag/retriever"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "txt"
)

var logger = logger_i.NewLogger("Session Manager")

type Manager struct {
	store sessionModel.Store
	now   func() time.Time
}

func NewManager(store sessionModel.Store) *Manager {
	return &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) CreateSession(ctx context.Context, name string) (sessionModel.Session, error) {
	session := sessionModel.Session{
		Id:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: m.now(),
	}
	if err := m.store.Create(ctx, session); err != nil {
		return sessionModel.Session{}, err
	}
	logger.FromContext(ctx).Info("session created", "sessionId", session.Id)
	return session, nil
}

// AppendTurn stamps and validates turn, then returns the sequence number assigned by the store.
func (m *Manager) AppendTurn(ctx context.Context, sessionId string, turn sessionModel.Turn) (int64, error) {
	switch turn.Role {
	case sessionModel.RoleUser, sessionModel.RoleAssistant:
	default:
		return 0, ragErrors.InvalidArgument("append turn", "unknown role %q", turn.Role)
	}
	if turn.Status == "" {
		turn.Status = sessionModel.StatusRecorded
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = m.now()
	}

	start := time.Now()
	seq, err := m.store.Append(ctx, sessionId, turn)
	metrics.CaptureExecutionMetrics("session_append", time.Since(start))
	if err != nil {
		logger.FromContext(ctx).Error("append turn failed", "sessionId", sessionId, "error", err)
		return 0, err
	}
	return seq, nil
}

func (m *Manager) ListSessions(ctx context.Context) ([]sessionModel.Session, error) {
	return m.store.List(ctx)
}

func (m *Manager) GetSession(ctx context.Context, sessionId string) (sessionModel.Session, []sessionModel.Turn, error) {
	return m.store.Get(ctx, sessionId)
}

func (m *Manager) DeleteSession(ctx context.Context, sessionId string) error {
	if err := m.store.Delete(ctx, sessionId); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("session deleted", "sessionId", sessionId)
	return nil
}

// History returns the prompt window for the question recorded at beforeSeq, built from the turns
// logged before it. beforeSeq <= 0 considers the whole log.
func (m *Manager) History(ctx context.Context, sessionId string, beforeSeq int64, maxTurns, tokenBudget int) ([]sessionModel.Turn, error) {
	_, turns, err := m.store.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if beforeSeq > 0 {
		n := 0
		for n < len(turns) && turns[n].Seq < beforeSeq {
			n++
		}
		turns = turns[:n]
	}
	return retriever.SelectHistory(turns, maxTurns, tokenBudget), nil
}

type exportDocument struct {
	Session    sessionModel.Session `json:"session"`
	Turns      []sessionModel.Turn  `json:"turns"`
	ExportedAt time.Time            `json:"exported_at"`
}

// Export renders the full log of a session. json keeps every field, txt is for reading.
func (m *Manager) Export(ctx context.Context, sessionId string, format Format) ([]byte, string, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatText {
		return nil, "", ragErrors.InvalidArgument("export session", "unsupported format %q", format)
	}
	session, turns, err := m.store.Get(ctx, sessionId)
	if err != nil {
		return nil, "", err
	}

	if format == FormatText {
		return renderText(session, turns), "text/plain; charset=utf-8", nil
	}
	data, err := json.MarshalIndent(exportDocument{Session: session, Turns: turns, ExportedAt: m.now()}, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal session export: %w", err)
	}
	return data, "application/json", nil
}

func renderText(session sessionModel.Session, turns []sessionModel.Turn) []byte {
	var b bytes.Buffer
	title := session.Name
	if title == "" {
		title = "Untitled session"
	}
	fmt.Fprintf(&b, "%s (%s)\n", title, session.Id)
	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format(time.RFC3339))

	for _, turn := range turns {
		fmt.Fprintf(&b, "\n[%d] %s %s\n", turn.Seq, turn.Role, turn.CreatedAt.Format(time.RFC3339))
		if turn.Status == sessionModel.StatusFailed {
			fmt.Fprintf(&b, "(failed: %s)\n", turn.Error)
			continue
		}
		b.WriteString(turn.Content)
		b.WriteByte('\n')
		for i, c := range turn.Citations {
			fmt.Fprintf(&b, "  [Source %d] %s @ %s\n", i+1, c.Title, retriever.FormatOffset(c.Offset))
		}
	}
	return b.Bytes()
}
