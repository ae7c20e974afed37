package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	mu    sync.Mutex
	paths []string
}

func (a *fakeArchiver) ArchivePath(path string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return false, nil
}

func (a *fakeArchiver) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func TestWalkOnce_ArchivesFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir", "b.txt"), []byte("y"), 0644))

	arch := &fakeArchiver{}
	m := New(Config{DirList: []string{dir}, PollInterval: time.Hour}, arch)
	m.walkOnce()

	seen := arch.seen()
	assert.Contains(t, seen, filepath.Join(dir, "a.txt"))
	assert.Contains(t, seen, filepath.Join(dir, "subdir", "b.txt"))
	assert.NotContains(t, seen, dir)
}

func TestStartStop_IsIdempotentAndGraceful(t *testing.T) {
	dir := t.TempDir()
	arch := &fakeArchiver{}
	m := New(Config{DirList: []string{dir}, PollInterval: time.Millisecond}, arch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	m.Start(ctx) // second call is a no-op
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	assert.NotEmpty(t, arch.seen())
}
