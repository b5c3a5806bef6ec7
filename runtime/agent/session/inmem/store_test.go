package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/session"
	"github.com/relayforge/workerflow/runtime/agent/session/inmem"
)

func TestCreateSessionIsIdempotentWhileActive(t *testing.T) {
	store := inmem.New()
	ctx := context.Background()
	now := time.Now()

	s1, err := store.CreateSession(ctx, "sess-1", now)
	require.NoError(t, err)
	require.Equal(t, session.StatusActive, s1.Status)

	s2, err := store.CreateSession(ctx, "sess-1", now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, s1.CreatedAt, s2.CreatedAt)
}

func TestCreateSessionAfterEndIsRejected(t *testing.T) {
	store := inmem.New()
	ctx := context.Background()
	now := time.Now()

	_, err := store.CreateSession(ctx, "sess-1", now)
	require.NoError(t, err)
	_, err = store.EndSession(ctx, "sess-1", now.Add(time.Minute))
	require.NoError(t, err)

	_, err = store.CreateSession(ctx, "sess-1", now.Add(2*time.Minute))
	require.ErrorIs(t, err, session.ErrSessionEnded)
}

func TestUpsertRunRequiresEntryName(t *testing.T) {
	store := inmem.New()
	err := store.UpsertRun(context.Background(), session.RunMeta{RunID: "run-1", SessionID: "sess-1"})
	require.Error(t, err)
}

func TestUpsertRunPreservesStartedAt(t *testing.T) {
	store := inmem.New()
	ctx := context.Background()

	err := store.UpsertRun(ctx, session.RunMeta{
		RunID: "run-1", SessionID: "sess-1", EntryName: "greet", Status: session.RunStatusRunning,
	})
	require.NoError(t, err)
	first, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.False(t, first.StartedAt.IsZero())

	err = store.UpsertRun(ctx, session.RunMeta{
		RunID: "run-1", SessionID: "sess-1", EntryName: "greet", Status: session.RunStatusCompleted,
	})
	require.NoError(t, err)
	second, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, first.StartedAt, second.StartedAt)
	require.Equal(t, session.RunStatusCompleted, second.Status)
}

func TestListRunsBySessionFiltersByStatus(t *testing.T) {
	store := inmem.New()
	ctx := context.Background()

	require.NoError(t, store.UpsertRun(ctx, session.RunMeta{
		RunID: "run-1", SessionID: "sess-1", EntryName: "greet", Status: session.RunStatusCompleted,
	}))
	require.NoError(t, store.UpsertRun(ctx, session.RunMeta{
		RunID: "run-2", SessionID: "sess-1", EntryName: "greet", Status: session.RunStatusFailed,
	}))
	require.NoError(t, store.UpsertRun(ctx, session.RunMeta{
		RunID: "run-3", SessionID: "sess-2", EntryName: "greet", Status: session.RunStatusCompleted,
	}))

	completed, err := store.ListRunsBySession(ctx, "sess-1", []session.RunStatus{session.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "run-1", completed[0].RunID)
}

func TestLoadRunNotFound(t *testing.T) {
	store := inmem.New()
	_, err := store.LoadRun(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrRunNotFound)
}
