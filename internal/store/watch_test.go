package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedge-tech/lessonlens/internal/models"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data, ok := <-ch:
		require.True(t, ok, "channel closed before expected event")
		return data
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return nil
	}
}

func TestWatchProgressEmitsInitialAndUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.SaveProgress("t1", models.Progress{Stage: models.StageInitializing}))

	ch, err := s.WatchProgress(ctx, "t1")
	require.NoError(t, err)

	first := recv(t, ch)
	assert.Contains(t, string(first), "initializing")

	require.NoError(t, s.SaveProgress("t1", models.Progress{
		Stage:    models.StagePreprocess,
		Message:  "Started",
		Progress: 0.2,
	}))

	// fsnotify may coalesce or split the write; scan until the new stage
	// shows up.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case data := <-ch:
			if strings.Contains(string(data), "transcript_preprocessing") {
				return
			}
		case <-deadline:
			t.Fatal("never observed updated progress")
		}
	}
}

func TestWatchLogStreamsAppendedSuffix(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.AppendLog("t1", "first"))

	ch, err := s.WatchLog(ctx, "t1")
	require.NoError(t, err)

	first := recv(t, ch)
	assert.Contains(t, string(first), "first")

	require.NoError(t, s.AppendLog("t1", "second"))

	data := recv(t, ch)
	assert.Contains(t, string(data), "second")
	assert.NotContains(t, string(data), "first")
}

func TestWatchStopsOnCancel(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.WatchProgress(ctx, "t1")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
