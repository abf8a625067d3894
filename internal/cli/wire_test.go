package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rcliao/voicenote/internal/config"
	"github.com/rcliao/voicenote/internal/embedding"
	"github.com/rcliao/voicenote/internal/objstore"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestNewObjectsLocal(t *testing.T) {
	dir := t.TempDir()
	withConfig(t, &config.Config{
		Server:  config.ServerConfig{PublicURL: "http://example.test/"},
		Storage: config.StorageConfig{Provider: "local", LocalDir: dir},
	})

	objects, err := newObjects()
	if err != nil {
		t.Fatalf("newObjects: %v", err)
	}
	local, ok := objects.(*objstore.LocalStore)
	if !ok {
		t.Fatalf("expected *objstore.LocalStore, got %T", objects)
	}
	if local.BaseURL != "http://example.test/files" {
		t.Errorf("base url = %q", local.BaseURL)
	}
	if filesDir() != dir {
		t.Errorf("filesDir = %q, want %q", filesDir(), dir)
	}
}

func TestFilesDirEmptyForOSS(t *testing.T) {
	withConfig(t, &config.Config{Storage: config.StorageConfig{Provider: "oss"}})
	if got := filesDir(); got != "" {
		t.Errorf("filesDir = %q, want empty", got)
	}
}

func TestStaticTokenCache(t *testing.T) {
	withConfig(t, &config.Config{ASR: config.ASRConfig{Token: "tok"}})

	cache, err := newTokenCache()
	if err != nil {
		t.Fatalf("newTokenCache: %v", err)
	}
	tok, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "tok" {
		t.Errorf("token = %q", tok)
	}
}

func TestDefaultEmbedderIsZero(t *testing.T) {
	withConfig(t, &config.Config{Embedding: config.EmbeddingConfig{Provider: "zero"}})

	emb, err := newEmbedder()
	if err != nil {
		t.Fatalf("newEmbedder: %v", err)
	}
	if emb.Dims() != embedding.DefaultDims {
		t.Errorf("dims = %d, want %d", emb.Dims(), embedding.DefaultDims)
	}
}

func TestOpenStoreUsesConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "v.db")
	withConfig(t, &config.Config{DBPath: path})

	s, err := openStore()
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer s.Close()

	st, err := s.Stats(context.Background(), path)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.DBPath != path {
		t.Errorf("db path = %q", st.DBPath)
	}
}

func TestNewSummaryJobRequiresEndpoint(t *testing.T) {
	withConfig(t, &config.Config{LLM: config.LLMConfig{Provider: "http"}})
	if _, err := newSummaryJob(nil); err == nil {
		t.Error("expected error without llm endpoint")
	}
}
