package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/data/sqliteStore"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

//go:embed migrations/*.sql
var sessionMigrations embed.FS

// SQLiteSessionStore is the default session log. Every append is its own transaction on a
// synchronous=FULL database, so a returned sequence number is on disk.
type SQLiteSessionStore struct {
	db      *sql.DB
	writeMu sync.Mutex
	logger  *logger_i.Logger
}

func OpenSQLiteSessionStore(ctx context.Context, path string) (*SQLiteSessionStore, error) {
	migrations, err := fs.Sub(sessionMigrations, "migrations")
	if err != nil {
		return nil, err
	}
	db, err := sqliteStore.Open(ctx, path, migrations)
	if err != nil {
		return nil, persistErr("open session store", err)
	}
	return &SQLiteSessionStore{
		db:     db,
		logger: logger_i.NewLogger("SessionStore"),
	}, nil
}

func (s *SQLiteSessionStore) Create(ctx context.Context, session sessionModel.Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)",
		session.Id, session.Name, session.CreatedAt.UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ragErrors.InvalidArgument("create session", "session %s already exists", session.Id)
		}
		return persistErr("create session", err)
	}
	s.logger.FromContext(ctx).Debug("Created session", "sessionId", session.Id)
	return nil
}

func (s *SQLiteSessionStore) Append(ctx context.Context, sessionId string, turn sessionModel.Turn) (int64, error) {
	citations := turn.Citations
	if citations == nil {
		citations = []commonModels.Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return 0, persistErr("append turn", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("append turn", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionId).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sessionModel.ErrSessionNotFound
	}
	if err != nil {
		return 0, persistErr("append turn", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?", sessionId).Scan(&seq); err != nil {
		return 0, persistErr("append turn", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (session_id, seq, role, content, citations_json, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionId, seq, string(turn.Role), turn.Content, string(citationsJSON),
		string(turn.Status), turn.Error, turn.CreatedAt.UnixNano())
	if err != nil {
		return 0, persistErr("append turn", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, persistErr("append turn", err)
	}
	s.logger.FromContext(ctx).Debug("Appended turn", "sessionId", sessionId, "seq", seq, "role", turn.Role, "status", turn.Status)
	return seq, nil
}

func (s *SQLiteSessionStore) List(ctx context.Context) ([]sessionModel.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.created_at, COUNT(t.seq)
		FROM sessions s LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at, s.id`)
	if err != nil {
		return nil, persistErr("list sessions", err)
	}
	defer rows.Close()

	sessions := []sessionModel.Session{}
	for rows.Next() {
		var session sessionModel.Session
		var created int64
		if err := rows.Scan(&session.Id, &session.Name, &created, &session.TurnCount); err != nil {
			return nil, persistErr("list sessions", err)
		}
		session.CreatedAt = time.Unix(0, created).UTC()
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list sessions", err)
	}
	return sessions, nil
}

func (s *SQLiteSessionStore) Get(ctx context.Context, sessionId string) (sessionModel.Session, []sessionModel.Turn, error) {
	var session sessionModel.Session
	var created int64
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM sessions WHERE id = ?", sessionId).
		Scan(&session.Id, &session.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return sessionModel.Session{}, nil, sessionModel.ErrSessionNotFound
	}
	if err != nil {
		return sessionModel.Session{}, nil, persistErr("read session", err)
	}
	session.CreatedAt = time.Unix(0, created).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, content, citations_json, status, error, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`, sessionId)
	if err != nil {
		return sessionModel.Session{}, nil, persistErr("read turns", err)
	}
	defer rows.Close()

	turns := []sessionModel.Turn{}
	for rows.Next() {
		var turn sessionModel.Turn
		var role, status, citationsJSON string
		var createdAt int64
		if err := rows.Scan(&turn.Seq, &role, &turn.Content, &citationsJSON, &status, &turn.Error, &createdAt); err != nil {
			return sessionModel.Session{}, nil, persistErr("read turns", err)
		}
		if err := json.Unmarshal([]byte(citationsJSON), &turn.Citations); err != nil {
			return sessionModel.Session{}, nil, persistErr("read turns", err)
		}
		if len(turn.Citations) == 0 {
			turn.Citations = nil
		}
		turn.Role = sessionModel.Role(role)
		turn.Status = sessionModel.TurnStatus(status)
		turn.CreatedAt = time.Unix(0, createdAt).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return sessionModel.Session{}, nil, persistErr("read turns", err)
	}
	session.TurnCount = len(turns)
	return session, turns, nil
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, sessionId string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionId)
	if err != nil {
		return persistErr("delete session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("delete session", err)
	}
	if n == 0 {
		return sessionModel.ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}
