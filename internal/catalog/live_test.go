package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchReloadsScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	first, err := FromFile(path)
	require.NoError(t, err)
	live := NewLive(first)

	reloads := make(chan error, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, live, WatchOptions{
			Debounce: 20 * time.Millisecond,
			OnReload: func(err error) { reloads <- err },
		})
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	broken := strings.Replace(minimal, "{buyer: 1}", "{auditor: 1}", 1)
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))
	select {
	case err := <-reloads:
		require.ErrorIs(t, err, ErrInvalidScenario)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after invalid write")
	}
	require.Same(t, first, live.Load())

	updated := strings.Replace(minimal, `title: "Test"`, `title: "Updated"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	deadline := time.After(5 * time.Second)
	for live.Load().Info.Title != "Updated" {
		select {
		case <-reloads:
		case <-deadline:
			t.Fatal("scenario was not reloaded")
		}
	}

	cancel()
	require.NoError(t, <-done)
}
