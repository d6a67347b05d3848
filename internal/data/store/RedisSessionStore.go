package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/data/redisStore"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

const sessionIndexKey = "sessions"

// RedisSessionStore keeps each session as a hash, a turn list and a sequence counter.
// Sequence numbers come from INCR in the same MULTI/EXEC as the RPUSH, so list position i holds seq i+1.
// Durability follows the server's appendfsync setting.
type RedisSessionStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisSessionStore(ctx context.Context, opts redisStore.Options) (*RedisSessionStore, error) {
	s, err := redisStore.GetRedisStore(ctx, opts, config.RedisSessionStore)
	if err != nil {
		return nil, err
	}
	return NewRedisSessionStore(s), nil
}

func NewRedisSessionStore(store *redisStore.Store) *RedisSessionStore {
	return &RedisSessionStore{
		store:  store,
		logger: logger_i.NewLogger("SessionStore"),
	}
}

func sessionKey(id string) string { return "session:" + id }
func turnsKey(id string) string   { return "session:" + id + ":turns" }
func seqKey(id string) string     { return "session:" + id + ":seq" }

func persistErr(op string, err error) error {
	return ragErrors.New(ragErrors.KindSessionPersist, op, "", err)
}

func (s *RedisSessionStore) Create(ctx context.Context, session sessionModel.Session) error {
	log := s.logger.FromContext(ctx).With("sessionId", session.Id)
	fields := map[string]interface{}{
		"id":         session.Id,
		"name":       session.Name,
		"created_at": session.CreatedAt.UnixNano(),
	}
	created, err := s.store.CreateIndexed(ctx, sessionKey(session.Id), fields,
		sessionIndexKey, session.Id, float64(session.CreatedAt.UnixNano()))
	if err != nil {
		log.Error("Error creating session", "error", err)
		return persistErr("create session", err)
	}
	if !created {
		return ragErrors.InvalidArgument("create session", "session %s already exists", session.Id)
	}
	log.Debug("Created session")
	return nil
}

func (s *RedisSessionStore) Append(ctx context.Context, sessionId string, turn sessionModel.Turn) (int64, error) {
	log := s.logger.FromContext(ctx).With("sessionId", sessionId)
	turn.Seq = 0
	data, err := json.Marshal(turn)
	if err != nil {
		return 0, persistErr("append turn", err)
	}
	seq, err := s.store.AppendSequenced(ctx, sessionKey(sessionId), seqKey(sessionId), turnsKey(sessionId), data)
	if errors.Is(err, redisStore.ErrKeyMissing) {
		return 0, sessionModel.ErrSessionNotFound
	}
	if err != nil {
		log.Error("Error appending turn", "error", err)
		return 0, persistErr("append turn", err)
	}
	log.Debug("Appended turn", "seq", seq, "role", turn.Role, "status", turn.Status)
	return seq, nil
}

func (s *RedisSessionStore) List(ctx context.Context) ([]sessionModel.Session, error) {
	ids, err := s.store.SortedMembers(ctx, sessionIndexKey)
	if err != nil {
		return nil, persistErr("list sessions", err)
	}
	sessions := make([]sessionModel.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.readSession(ctx, id)
		if errors.Is(err, sessionModel.ErrSessionNotFound) {
			// deleted between the index read and now
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *RedisSessionStore) readSession(ctx context.Context, id string) (sessionModel.Session, error) {
	fields, err := s.store.HashGetAll(ctx, sessionKey(id))
	if err != nil {
		return sessionModel.Session{}, persistErr("read session", err)
	}
	if len(fields) == 0 {
		return sessionModel.Session{}, sessionModel.ErrSessionNotFound
	}
	count, err := s.store.ListLen(ctx, turnsKey(id))
	if err != nil {
		return sessionModel.Session{}, persistErr("read session", err)
	}
	createdNanos, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return sessionModel.Session{
		Id:        id,
		Name:      fields["name"],
		CreatedAt: time.Unix(0, createdNanos).UTC(),
		TurnCount: int(count),
	}, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionId string) (sessionModel.Session, []sessionModel.Turn, error) {
	session, err := s.readSession(ctx, sessionId)
	if err != nil {
		return sessionModel.Session{}, nil, err
	}
	raw, err := s.store.ListGetAll(ctx, turnsKey(sessionId))
	if err != nil {
		return sessionModel.Session{}, nil, persistErr("read turns", err)
	}
	turns := make([]sessionModel.Turn, len(raw))
	for i, item := range raw {
		if err := json.Unmarshal([]byte(item), &turns[i]); err != nil {
			return sessionModel.Session{}, nil, persistErr("read turns", err)
		}
		turns[i].Seq = int64(i + 1)
	}
	session.TurnCount = len(turns)
	return session, turns, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionId string) error {
	deleted, err := s.store.DeleteIndexed(ctx, sessionKey(sessionId), sessionIndexKey, sessionId,
		turnsKey(sessionId), seqKey(sessionId))
	if err != nil {
		return persistErr("delete session", err)
	}
	if !deleted {
		return sessionModel.ErrSessionNotFound
	}
	s.logger.FromContext(ctx).Debug("Deleted session", "sessionId", sessionId)
	return nil
}

// Close is a no-op; the shared client is closed with the application context.
func (s *RedisSessionStore) Close() error {
	return nil
}
