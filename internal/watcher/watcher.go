// Package watcher ingests audio files dropped into <inbox>/<userID>/.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rcliao/voicenote/internal/pipeline"
	"github.com/rcliao/voicenote/internal/trace"
)

// AudioExtensions are the file types picked up from the inbox.
var AudioExtensions = []string{".wav", ".mp3", ".pcm", ".opus", ".ogg", ".amr", ".m4a", ".aac"}

const (
	processedDir = ".processed"
	failedDir    = ".failed"
)

// Uploader runs the full ingest flow for one file.
type Uploader interface {
	Upload(ctx context.Context, userID, fileName string, audio []byte) (*pipeline.SaveResult, error)
}

// Watcher monitors the inbox and its per-user subdirectories.
type Watcher struct {
	inbox     string
	uploader  Uploader
	settle    time.Duration
	watcher   *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// New watches inbox, creating it if needed. At most maxConcurrent uploads run
// at once.
func New(inbox string, uploader Uploader, maxConcurrent int) (*Watcher, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		inbox:     inbox,
		uploader:  uploader,
		settle:    500 * time.Millisecond,
		watcher:   fw,
		semaphore: make(chan struct{}, maxConcurrent),
	}

	if err := fw.Add(inbox); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", inbox, err)
	}
	entries, err := os.ReadDir(inbox)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			if err := fw.Add(filepath.Join(inbox, e.Name())); err != nil {
				fw.Close()
				return nil, fmt.Errorf("watch user dir %s: %w", e.Name(), err)
			}
		}
	}
	return w, nil
}

// Start processes events until ctx is done, then waits for in-flight uploads.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("inbox watcher started", "inbox", w.inbox, "max_concurrent", cap(w.semaphore))

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			slog.Info("inbox watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if err := w.handleCreate(ctx, event.Name); err != nil {
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) handleCreate(ctx context.Context, path string) error {
	rel, err := filepath.Rel(w.inbox, path)
	if err != nil {
		return nil
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	if info.IsDir() {
		if len(parts) == 1 && !hidden(parts[0]) {
			if err := w.watcher.Add(path); err != nil {
				slog.Warn("watch user dir failed", "dir", path, "error", err)
			}
		}
		return nil
	}

	if len(parts) != 2 || hidden(parts[0]) || hidden(parts[1]) || !isAudio(parts[1]) {
		slog.Debug("ignoring inbox file", "path", path)
		return nil
	}

	// let the writer finish
	time.Sleep(w.settle)

	select {
	case w.semaphore <- struct{}{}:
		w.wg.Add(1)
		go func(userID, fileName, path string) {
			defer w.wg.Done()
			defer func() { <-w.semaphore }()
			w.ingest(ctx, userID, fileName, path)
		}(parts[0], parts[1], path)
	case <-ctx.Done():
	}
	return nil
}

func (w *Watcher) ingest(ctx context.Context, userID, fileName, path string) {
	ctx, _ = trace.Ensure(ctx)
	log := trace.Logger(ctx).With("user_id", userID, "file", fileName)

	audio, err := os.ReadFile(path)
	if err != nil {
		log.Error("read inbox file", "error", err)
		return
	}

	res, err := w.uploader.Upload(ctx, userID, fileName, audio)
	dest := processedDir
	if err != nil {
		log.Error("inbox upload failed", "error", err)
		dest = failedDir
	} else {
		log.Info("inbox file ingested", "record_id", res.RecordID)
	}

	target := filepath.Join(w.inbox, dest, userID, fileName)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		log.Warn("create archive dir", "error", err)
		return
	}
	if err := os.Rename(path, target); err != nil {
		log.Warn("archive inbox file", "error", err)
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AudioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}
