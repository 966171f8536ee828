package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dipievil/drone-ci-ex-helper/pkg/console"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 300 * time.Millisecond

// WatchFiles validates the files once, then again every time one of them changes,
// until ctx is cancelled
func WatchFiles(ctx context.Context, store *schema.Store, opts ValidateOptions, out io.Writer) error {
	watched := make(map[string]string, len(opts.Files))
	dirs := make(map[string]struct{})
	for _, file := range opts.Files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		watched[abs] = file
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	// Editors often replace files on save, so watch the parent directories
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	fmt.Fprintln(out, console.FormatInfoMessage(fmt.Sprintf("Watching %d file(s) for changes", len(opts.Files))))
	if opts.Verbose {
		fmt.Fprintln(out, console.FormatVerboseMessage("Press Ctrl+C to stop watching."))
	}

	// Reports from the timer goroutine and the loop must not interleave
	var outMu sync.Mutex
	report := func(files []string) {
		outMu.Lock()
		defer outMu.Unlock()
		run := opts
		run.Files = files
		if _, err := ValidateFiles(store, run, out); err != nil && !errors.Is(err, ErrProblemsFound) {
			fmt.Fprintln(out, console.FormatErrorMessage(err.Error()))
		}
	}

	report(opts.Files)

	var (
		pendingMu     sync.Mutex
		pending       = make(map[string]struct{})
		debounceTimer *time.Timer
	)
	flush := func() {
		pendingMu.Lock()
		files := make([]string, 0, len(pending))
		for file := range pending {
			files = append(files, file)
		}
		pending = make(map[string]struct{})
		pendingMu.Unlock()

		if len(files) == 0 {
			return
		}
		slices.Sort(files)
		report(files)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}

			file, ok := watched[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			if opts.Verbose {
				fmt.Fprintln(out, console.FormatVerboseMessage(fmt.Sprintf("Detected change: %s (%s)", file, event.Op.String())))
			}

			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				// A replacing editor recreates the file right away; the Create event revalidates it
				if opts.Verbose {
					fmt.Fprintln(out, console.FormatWarningMessage(fmt.Sprintf("%s was removed", file)))
				}
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				pendingMu.Lock()
				pending[file] = struct{}{}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, flush)
				pendingMu.Unlock()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			log.Warningf("watcher error: %s", err)

		case <-ctx.Done():
			pendingMu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			pendingMu.Unlock()
			if opts.Verbose {
				fmt.Fprintln(out, console.FormatVerboseMessage("Stopping watch mode..."))
			}
			return nil
		}
	}
}

// validationContext is shared by one-shot and watch runs
func validationContext(store *schema.Store, settings FileSettings) validation.Context {
	return validation.Context{Schema: store.Current(), Settings: settings.Settings}
}
