package store_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/TranscriptRAG/internal/data/redisStore"
	"github.com/akolanti/TranscriptRAG/internal/data/store"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
)

type sessionStoreFactory func(t *testing.T) sessionModel.Store

func sessionStores() map[string]sessionStoreFactory {
	return map[string]sessionStoreFactory{
		"sqlite": func(t *testing.T) sessionModel.Store {
			s, err := store.OpenSQLiteSessionStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"redis": func(t *testing.T) sessionModel.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return store.NewRedisSessionStore(redisStore.NewTestStore(client))
		},
	}
}

func newSession(id string, created time.Time) sessionModel.Session {
	return sessionModel.Session{Id: id, Name: "name " + id, CreatedAt: created}
}

func TestSessionStore_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for name, factory := range sessionStores() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			require.NoError(t, s.Create(ctx, newSession("s1", now)))

			citations := []commonModels.Citation{{ChunkId: "c1", DocumentId: "ep1", Title: "Episode 1", Offset: 90 * time.Second, Score: 0.8, Label: "Source 1"}}
			seq1, err := s.Append(ctx, "s1", sessionModel.Turn{Role: sessionModel.RoleUser, Content: "hello", Status: sessionModel.StatusRecorded, CreatedAt: now})
			require.NoError(t, err)
			seq2, err := s.Append(ctx, "s1", sessionModel.Turn{Role: sessionModel.RoleAssistant, Content: "hi", Citations: citations, Status: sessionModel.StatusSucceeded, CreatedAt: now})
			require.NoError(t, err)
			seq3, err := s.Append(ctx, "s1", sessionModel.Turn{Role: sessionModel.RoleAssistant, Status: sessionModel.StatusFailed, Error: "timeout", CreatedAt: now})
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2, 3}, []int64{seq1, seq2, seq3})

			session, turns, err := s.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "name s1", session.Name)
			assert.True(t, now.Equal(session.CreatedAt))
			assert.Equal(t, 3, session.TurnCount)
			require.Len(t, turns, 3)
			assert.Equal(t, int64(2), turns[1].Seq)
			assert.Equal(t, "hi", turns[1].Content)
			assert.Equal(t, citations, turns[1].Citations)
			assert.Nil(t, turns[0].Citations)
			assert.Equal(t, sessionModel.StatusFailed, turns[2].Status)
			assert.Equal(t, "timeout", turns[2].Error)
		})
	}
}

func TestSessionStore_UnknownSession(t *testing.T) {
	ctx := context.Background()
	for name, factory := range sessionStores() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)

			_, err := s.Append(ctx, "ghost", sessionModel.Turn{Role: sessionModel.RoleUser, Content: "x"})
			assert.ErrorIs(t, err, sessionModel.ErrSessionNotFound)
			assert.ErrorIs(t, err, ragErrors.ErrNotFound)

			_, _, err = s.Get(ctx, "ghost")
			assert.ErrorIs(t, err, sessionModel.ErrSessionNotFound)

			assert.ErrorIs(t, s.Delete(ctx, "ghost"), sessionModel.ErrSessionNotFound)
		})
	}
}

func TestSessionStore_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	for name, factory := range sessionStores() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			require.NoError(t, s.Create(ctx, newSession("dup", time.Now())))
			assert.ErrorIs(t, s.Create(ctx, newSession("dup", time.Now())), ragErrors.ErrInvalidArgument)
		})
	}
}

func TestSessionStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for name, factory := range sessionStores() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			require.NoError(t, s.Create(ctx, newSession("b", base.Add(time.Minute))))
			require.NoError(t, s.Create(ctx, newSession("a", base)))
			_, err := s.Append(ctx, "b", sessionModel.Turn{Role: sessionModel.RoleUser, Content: "q", Status: sessionModel.StatusRecorded, CreatedAt: base})
			require.NoError(t, err)

			sessions, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 2)
			assert.Equal(t, "a", sessions[0].Id)
			assert.Equal(t, "b", sessions[1].Id)
			assert.Equal(t, 1, sessions[1].TurnCount)

			require.NoError(t, s.Delete(ctx, "b"))
			sessions, err = s.List(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			_, _, err = s.Get(ctx, "b")
			assert.ErrorIs(t, err, sessionModel.ErrSessionNotFound)
		})
	}
}

func TestSessionStore_ConcurrentAppendsGetDistinctSequence(t *testing.T) {
	ctx := context.Background()
	for name, factory := range sessionStores() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			require.NoError(t, s.Create(ctx, newSession("c", time.Now())))

			const writers = 20
			seqs := make([]int64, writers)
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					seq, err := s.Append(ctx, "c", sessionModel.Turn{Role: sessionModel.RoleUser, Content: "m", Status: sessionModel.StatusRecorded, CreatedAt: time.Now()})
					assert.NoError(t, err)
					seqs[i] = seq
				}(i)
			}
			wg.Wait()

			seen := map[int64]bool{}
			for _, seq := range seqs {
				assert.False(t, seen[seq], "duplicate seq %d", seq)
				seen[seq] = true
			}
			_, turns, err := s.Get(ctx, "c")
			require.NoError(t, err)
			require.Len(t, turns, writers)
			for i, turn := range turns {
				assert.Equal(t, int64(i+1), turn.Seq)
			}
		})
	}
}

func TestSQLiteSessionStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	s, err := store.OpenSQLiteSessionStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, newSession("p", time.Now())))
	_, err = s.Append(ctx, "p", sessionModel.Turn{Role: sessionModel.RoleUser, Content: "before", Status: sessionModel.StatusRecorded, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.OpenSQLiteSessionStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	seq, err := s.Append(ctx, "p", sessionModel.Turn{Role: sessionModel.RoleUser, Content: "after", Status: sessionModel.StatusRecorded, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}
