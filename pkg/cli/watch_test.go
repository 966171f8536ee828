package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written from the watcher's timer goroutine and read by the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchFilesRevalidatesOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("watch test relies on file system events")
	}

	dir := t.TempDir()
	file := writeFile(t, dir, ".drone.yml", validPipeline)
	writeFile(t, dir, "unrelated.yml", "x: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := bundledStore(t)
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- WatchFiles(ctx, store, ValidateOptions{
			Files:    []string{file},
			Settings: DefaultFileSettings(),
		}, out)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "1 file valid")
	}, 5*time.Second, 20*time.Millisecond, "initial validation never ran")

	require.NoError(t, os.WriteFile(file, []byte(invalidPipeline), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `property "foo" is not allowed`)
	}, 5*time.Second, 50*time.Millisecond, "change was not revalidated; output:\n%s", out.String())

	// Changes to files outside the watched set are ignored
	before := out.String()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.yml"), []byte("x: 2\n"), 0o644))
	time.Sleep(2 * debounceDelay)
	assert.Equal(t, before, out.String())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WatchFiles did not stop after cancel")
	}
}

func TestWatchFilesMissingDirectory(t *testing.T) {
	err := WatchFiles(context.Background(), bundledStore(t), ValidateOptions{
		Files: []string{"/does/not/exist/.drone.yml"},
	}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to watch directory")
}
