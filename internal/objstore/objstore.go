// Package objstore persists uploaded audio and returns a URL the recognition
// gateway can fetch.
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// Store writes objects and reports their public URL.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)
}

// ObjectKey builds user_<userID>/<unixMillis>_<fileName>.
func ObjectKey(userID, fileName string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" {
		name = "audio"
	}
	return fmt.Sprintf("user_%s/%d_%s", userID, now.UnixMilli(), name)
}

// OSSStore stores objects in an Aliyun OSS bucket.
type OSSStore struct {
	bucket   *oss.Bucket
	name     string
	endpoint string
}

// NewOSSStore connects to bucket at endpoint (host only, e.g. oss-cn-shanghai.aliyuncs.com).
func NewOSSStore(endpoint, accessKeyID, accessKeySecret, bucket string) (*OSSStore, error) {
	client, err := oss.New("https://"+endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("create oss client: %w", err)
	}
	b, err := client.Bucket(bucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	return &OSSStore{bucket: b, name: bucket, endpoint: endpoint}, nil
}

// Put uploads r under key. The SDK call does not take a context; ctx is only
// checked before the upload starts.
func (s *OSSStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var opts []oss.Option
	if size >= 0 {
		opts = append(opts, oss.ContentLength(size))
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.URL(key), nil
}

// URL returns https://<bucket>.<endpoint>/<key>.
func (s *OSSStore) URL(key string) string {
	return "https://" + s.name + "." + s.endpoint + "/" + key
}

// LocalStore writes objects under a directory. URLs are BaseURL/key when a
// base URL is set, file:// paths otherwise.
type LocalStore struct {
	Dir     string
	BaseURL string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("empty object key")
	}

	dest := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create object %s: %w", clean, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("write object %s: %w", clean, err)
	}
	if size >= 0 && n != size {
		os.Remove(dest)
		return "", fmt.Errorf("write object %s: wrote %d of %d bytes", clean, n, size)
	}

	if s.BaseURL != "" {
		return s.BaseURL + "/" + clean, nil
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
