package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestZeroEmbedder(t *testing.T) {
	e := NewZeroEmbedder(0)
	if e.Dims() != 1536 {
		t.Fatalf("expected 1536 dims, got %d", e.Dims())
	}

	for _, text := range []string{"", "hello", "a much longer transcript with punctuation."} {
		v, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("embed %q: %v", text, err)
		}
		if len(v) != 1536 {
			t.Fatalf("expected length 1536, got %d", len(v))
		}
		for i, x := range v {
			if x != 0 {
				t.Fatalf("expected zero at %d, got %f", i, x)
			}
		}
	}
}

func TestZeroEmbedderFreshVector(t *testing.T) {
	e := NewZeroEmbedder(4)
	a, _ := e.Embed(context.Background(), "x")
	a[0] = 9
	b, _ := e.Embed(context.Background(), "x")
	if b[0] != 0 {
		t.Error("expected a new vector on each call")
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req openaiEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Input != "hi" {
			t.Errorf("unexpected input %q", req.Input)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "k", "", 2, time.Second)
	v, err := e.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v) != 2 {
		t.Errorf("expected 2 values, got %d", len(v))
	}
}

func TestOpenAIEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "", "", 0, time.Second)
	if _, err := e.Embed(context.Background(), "hi"); err == nil {
		t.Error("expected error on 429")
	}
}

func TestOllamaEmbedderDims(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		dims    int
		wantErr bool
	}{
		{"configured length matches", 3, false},
		{"configured length differs", 1536, true},
		{"native length differs", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewOllamaEmbedder(srv.URL, "", tt.dims, time.Second)
			v, err := e.Embed(context.Background(), "hi")
			if tt.wantErr {
				if !errors.Is(err, ErrDimsMismatch) {
					t.Errorf("expected ErrDimsMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("embed: %v", err)
			}
			if len(v) != e.Dims() {
				t.Errorf("got %d values, Dims() = %d", len(v), e.Dims())
			}
		})
	}
}

func TestOpenAIEmbedderDimsMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "", "", 0, time.Second)
	if _, err := e.Embed(context.Background(), "hi"); !errors.Is(err, ErrDimsMismatch) {
		t.Errorf("expected ErrDimsMismatch, got %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		wantDims int
		wantErr  bool
	}{
		{"", 1536, false},
		{"zero", 1536, false},
		{"ollama", 768, false},
		{"openai", 1536, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			e, err := New(Options{Provider: tt.provider})
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if e.Dims() != tt.wantDims {
				t.Errorf("expected %d dims, got %d", tt.wantDims, e.Dims())
			}
		})
	}
}
