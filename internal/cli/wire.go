package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/voicenote/internal/asr"
	"github.com/rcliao/voicenote/internal/credential"
	"github.com/rcliao/voicenote/internal/embedding"
	"github.com/rcliao/voicenote/internal/llm"
	"github.com/rcliao/voicenote/internal/objstore"
	"github.com/rcliao/voicenote/internal/pipeline"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/rcliao/voicenote/internal/summary"
)

// staticTokenTTL is how long a configured ASR token is trusted before the
// cache asks for it again.
const staticTokenTTL = 24 * time.Hour

func newTokenCache() (*credential.Cache, error) {
	if cfg.ASR.Token != "" {
		return credential.NewCache(credential.Static(cfg.ASR.Token, staticTokenTTL)), nil
	}
	issuer, err := credential.NewAliyunIssuer(cfg.Aliyun.Region, cfg.Aliyun.AccessKeyID, cfg.Aliyun.AccessKeySecret)
	if err != nil {
		return nil, err
	}
	return credential.NewCache(issuer), nil
}

func newASR() (*asr.Client, error) {
	tokens, err := newTokenCache()
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}
	return asr.New(tokens, cfg.ASR.AppKey, cfg.ASR.Gateway, cfg.ASRTimeout()), nil
}

func newEmbedder() (embedding.Embedder, error) {
	return embedding.New(embedding.Options{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Dims:     cfg.Embedding.Dims,
		Timeout:  cfg.EmbeddingTimeout(),
	})
}

func newObjects() (objstore.Store, error) {
	switch cfg.Storage.Provider {
	case "local":
		base := ""
		if cfg.Server.PublicURL != "" {
			base = strings.TrimRight(cfg.Server.PublicURL, "/") + "/files"
		}
		return objstore.NewLocalStore(cfg.Storage.LocalDir, base)
	default:
		return objstore.NewOSSStore(cfg.Storage.Endpoint, cfg.Aliyun.AccessKeyID, cfg.Aliyun.AccessKeySecret, cfg.Storage.Bucket)
	}
}

// filesDir is the directory the server exposes under /files/, or "".
func filesDir() string {
	if cfg.Storage.Provider == "local" {
		return cfg.Storage.LocalDir
	}
	return ""
}

func newPipeline(s *store.SQLiteStore) (*pipeline.Pipeline, embedding.Embedder, error) {
	objects, err := newObjects()
	if err != nil {
		return nil, nil, fmt.Errorf("object storage: %w", err)
	}
	tr, err := newASR()
	if err != nil {
		return nil, nil, err
	}
	emb, err := newEmbedder()
	if err != nil {
		return nil, nil, fmt.Errorf("embedder: %w", err)
	}
	return pipeline.New(objects, tr, emb, s), emb, nil
}

func newSummaryJob(s *store.SQLiteStore) (*summary.Job, error) {
	sum, err := llm.New(llm.Options{
		Provider: cfg.LLM.Provider,
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("summarizer: %w", err)
	}
	return summary.New(s, sum), nil
}
