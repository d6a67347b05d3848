package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/TranscriptRAG/internal/data/store"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
)

func newManager(t *testing.T) *Manager {
	s, err := store.OpenSQLiteSessionStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	m := NewManager(s)
	fixed := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	return m
}

func TestCreateAndAppend(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	session, err := m.CreateSession(ctx, "  tides  ")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Id)
	assert.Equal(t, "tides", session.Name)

	seq, err := m.AppendTurn(ctx, session.Id, sessionModel.Turn{Role: sessionModel.RoleUser, Content: "when is high tide?"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	_, turns, err := m.GetSession(ctx, session.Id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, sessionModel.StatusRecorded, turns[0].Status)
	assert.False(t, turns[0].CreatedAt.IsZero())

	_, err = m.AppendTurn(ctx, session.Id, sessionModel.Turn{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)

	_, err = m.AppendTurn(ctx, "missing", sessionModel.Turn{Role: sessionModel.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, sessionModel.ErrSessionNotFound)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	a, err := m.CreateSession(ctx, "a")
	require.NoError(t, err)
	_, err = m.CreateSession(ctx, "b")
	require.NoError(t, err)

	sessions, err := m.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, m.DeleteSession(ctx, a.Id))
	assert.ErrorIs(t, m.DeleteSession(ctx, a.Id), sessionModel.ErrSessionNotFound)
	sessions, err = m.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestHistorySkipsFailedTurns(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	s, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	appendTurn := func(role sessionModel.Role, content string, status sessionModel.TurnStatus) {
		_, err := m.AppendTurn(ctx, s.Id, sessionModel.Turn{Role: role, Content: content, Status: status})
		require.NoError(t, err)
	}
	appendTurn(sessionModel.RoleUser, "first question", sessionModel.StatusRecorded)
	appendTurn(sessionModel.RoleAssistant, "", sessionModel.StatusFailed)
	appendTurn(sessionModel.RoleUser, "second question", sessionModel.StatusRecorded)
	appendTurn(sessionModel.RoleAssistant, "second answer", sessionModel.StatusSucceeded)

	appendTurn(sessionModel.RoleUser, "third question", sessionModel.StatusRecorded)

	history, err := m.History(ctx, s.Id, 0, 10, 100)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{history[0].Seq, history[1].Seq, history[2].Seq})

	history, err = m.History(ctx, s.Id, 5, 10, 100)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []int64{3, 4}, []int64{history[0].Seq, history[1].Seq})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	s, err := m.CreateSession(ctx, "Episode chat")
	require.NoError(t, err)

	_, err = m.AppendTurn(ctx, s.Id, sessionModel.Turn{Role: sessionModel.RoleUser, Content: "Who hosted?"})
	require.NoError(t, err)
	_, err = m.AppendTurn(ctx, s.Id, sessionModel.Turn{
		Role:    sessionModel.RoleAssistant,
		Content: "Ana hosted [Source 1].",
		Status:  sessionModel.StatusSucceeded,
		Citations: []commonModels.Citation{
			{ChunkId: "c1", DocumentId: "ep1", Title: "Episode 1", Offset: 96 * time.Second, Score: 0.9, Label: "Episode 1 @ 00:01:36"},
		},
	})
	require.NoError(t, err)
	_, err = m.AppendTurn(ctx, s.Id, sessionModel.Turn{Role: sessionModel.RoleAssistant, Status: sessionModel.StatusFailed, Error: "completion timed out"})
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		data, contentType, err := m.Export(ctx, s.Id, FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, "application/json", contentType)

		var doc exportDocument
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, s.Id, doc.Session.Id)
		require.Len(t, doc.Turns, 3)
		assert.Equal(t, "ep1", doc.Turns[1].Citations[0].DocumentId)
		assert.Equal(t, sessionModel.StatusFailed, doc.Turns[2].Status)
	})

	t.Run("txt", func(t *testing.T) {
		data, contentType, err := m.Export(ctx, s.Id, FormatText)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(contentType, "text/plain"))

		text := string(data)
		assert.True(t, strings.HasPrefix(text, "Episode chat ("+s.Id+")\n"))
		assert.Contains(t, text, "[1] user")
		assert.Contains(t, text, "Ana hosted [Source 1].\n  [Source 1] Episode 1 @ 00:01:36\n")
		assert.Contains(t, text, "(failed: completion timed out)")
	})

	t.Run("bad format", func(t *testing.T) {
		_, _, err := m.Export(ctx, s.Id, "pdf")
		assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, _, err := m.Export(ctx, "missing", FormatJSON)
		assert.ErrorIs(t, err, sessionModel.ErrSessionNotFound)
	})
}
