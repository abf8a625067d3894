package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/voicenote/internal/pipeline"
)

type call struct {
	userID, fileName, audio string
}

type mockUploader struct {
	mu    sync.Mutex
	calls []call
	err   error
	done  chan struct{}
}

func (m *mockUploader) Upload(_ context.Context, userID, fileName string, audio []byte) (*pipeline.SaveResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call{userID, fileName, string(audio)})
	m.mu.Unlock()
	defer func() { m.done <- struct{}{} }()
	if m.err != nil {
		return nil, m.err
	}
	return &pipeline.SaveResult{RecordID: "r1"}, nil
}

func startWatcher(t *testing.T, inbox string, up Uploader) context.CancelFunc {
	t.Helper()
	w, err := New(inbox, up, 2)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Stop()
	})
	return cancel
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for upload")
	}
}

func waitExists(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %s to exist", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIngestsExistingUserDir(t *testing.T) {
	inbox := t.TempDir()
	os.MkdirAll(filepath.Join(inbox, "alice"), 0o755)

	up := &mockUploader{done: make(chan struct{}, 1)}
	startWatcher(t, inbox, up)

	os.WriteFile(filepath.Join(inbox, "alice", "memo.wav"), []byte("RIFF"), 0o644)
	waitFor(t, up.done)

	up.mu.Lock()
	got := up.calls
	up.mu.Unlock()
	if len(got) != 1 || got[0] != (call{"alice", "memo.wav", "RIFF"}) {
		t.Errorf("unexpected calls %+v", got)
	}
	waitExists(t, filepath.Join(inbox, processedDir, "alice", "memo.wav"))
}

func TestIngestsNewUserDir(t *testing.T) {
	inbox := t.TempDir()
	up := &mockUploader{done: make(chan struct{}, 1)}
	startWatcher(t, inbox, up)

	dir := filepath.Join(inbox, "bob")
	os.MkdirAll(dir, 0o755)
	// give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "note.mp3"), []byte("ID3"), 0o644)

	waitFor(t, up.done)
	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.calls) != 1 || up.calls[0].userID != "bob" {
		t.Errorf("unexpected calls %+v", up.calls)
	}
}

func TestFailedUploadArchived(t *testing.T) {
	inbox := t.TempDir()
	os.MkdirAll(filepath.Join(inbox, "carol"), 0o755)

	up := &mockUploader{done: make(chan struct{}, 1), err: errors.New("asr down")}
	startWatcher(t, inbox, up)

	os.WriteFile(filepath.Join(inbox, "carol", "x.wav"), []byte("x"), 0o644)
	waitFor(t, up.done)
	waitExists(t, filepath.Join(inbox, failedDir, "carol", "x.wav"))
}

func TestIsAudio(t *testing.T) {
	tests := map[string]bool{
		"a.wav":  true,
		"a.MP3":  true,
		"a.txt":  false,
		"noext":  false,
		"b.opus": true,
	}
	for name, want := range tests {
		if got := isAudio(name); got != want {
			t.Errorf("isAudio(%q) = %v, want %v", name, got, want)
		}
	}
}
