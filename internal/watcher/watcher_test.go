package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainEvents(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			return got
		}
	}
}

func TestWatcherEmitsUpsertOnWrite(t *testing.T) {
	root := t.TempDir()
	w, err := New(Config{Root: root, DebounceDelay: 30 * time.Millisecond})
	require.NoError(t, err)

	ch, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	target := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(target, []byte("package a\n"), 0o644))

	events := drainEvents(t, ch, 500*time.Millisecond)
	require.NotEmpty(t, events)
	assert.Equal(t, "a.go", events[len(events)-1].RelPath)
	assert.Equal(t, EventUpsert, events[len(events)-1].Type)
}

func TestWatcherCollapsesRapidEventsForSamePath(t *testing.T) {
	root := t.TempDir()
	w, err := New(Config{Root: root, DebounceDelay: 100 * time.Millisecond})
	require.NoError(t, err)

	ch, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	target := filepath.Join(root, "b.go")
	require.NoError(t, os.WriteFile(target, []byte("package b\n"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("package b\n\nfunc B() {}\n"), 0o644))
	require.NoError(t, os.Remove(target))

	events := drainEvents(t, ch, 600*time.Millisecond)
	require.Len(t, events, 1, "writes and the delete for the same path should collapse to one event")
	assert.Equal(t, EventDelete, events[0].Type, "delete should win over a pending upsert for the same path")
}

func TestWatcherIgnoresFilteredExtensions(t *testing.T) {
	root := t.TempDir()
	w, err := New(Config{
		Root:          root,
		DebounceDelay: 30 * time.Millisecond,
		Filter:        ExtensionFilter{Allowed: map[string]bool{".go": true}},
	})
	require.NoError(t, err)

	ch, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("hi"), 0o644))
	events := drainEvents(t, ch, 300*time.Millisecond)
	assert.Empty(t, events)
}

func TestWatcherIgnoresChmodOnly(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "c.go")
	require.NoError(t, os.WriteFile(target, []byte("package c\n"), 0o644))

	w, err := New(Config{Root: root, DebounceDelay: 30 * time.Millisecond})
	require.NoError(t, err)
	ch, err := w.Start(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.Chmod(target, 0o600))
	events := drainEvents(t, ch, 200*time.Millisecond)
	assert.Empty(t, events)
}
