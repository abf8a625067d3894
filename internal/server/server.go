// Package server exposes the ingest pipeline, stored data and the summary
// push socket over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rcliao/voicenote/internal/asr"
	"github.com/rcliao/voicenote/internal/credential"
	"github.com/rcliao/voicenote/internal/embedding"
	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/pipeline"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/rcliao/voicenote/internal/summary"
	"github.com/rcliao/voicenote/internal/trace"
)

const (
	// MaxUploadBytes caps a multipart audio upload.
	MaxUploadBytes = 32 << 20

	defaultListLimit = 20
	shutdownTimeout  = 10 * time.Second
)

// Ingest runs the audio flows.
type Ingest interface {
	Recognize(ctx context.Context, userID, fileName string, audio []byte) (*pipeline.RecognizeResult, error)
	Save(ctx context.Context, userID, fileName string, audio []byte, transcript string) (*pipeline.SaveResult, error)
	Upload(ctx context.Context, userID, fileName string, audio []byte) (*pipeline.SaveResult, error)
}

// Queries reads stored records, summaries and transcripts.
type Queries interface {
	ListRecords(ctx context.Context, p store.ListParams) ([]model.VoiceRecord, error)
	ListSummaries(ctx context.Context, p store.ListParams) ([]model.DailySummary, error)
	Search(ctx context.Context, p store.SearchParams) ([]store.SearchResult, error)
}

// Runner triggers a batch summary run.
type Runner interface {
	RunToday(ctx context.Context) (summary.Outcome, error)
}

// Options configures optional parts of the server.
type Options struct {
	Push     http.Handler       // mounted at /ws when set
	Embedder embedding.Embedder // ranks search results when set
	FilesDir string             // served at /files/ for local object storage
}

// Server handles HTTP requests.
type Server struct {
	ingest  Ingest
	queries Queries
	runner  Runner
	opts    Options
}

// New creates a server.
func New(ingest Ingest, queries Queries, runner Runner, opts Options) *Server {
	return &Server{ingest: ingest, queries: queries, runner: runner, opts: opts}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/audio/recognize", s.handleRecognize)
	mux.HandleFunc("POST /api/audio/save", s.handleSave)
	mux.HandleFunc("POST /api/audio/upload", s.handleUpload)

	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/transcripts/search", s.handleSearch)
	mux.HandleFunc("POST /api/summaries/run", s.handleRun)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.opts.Push != nil {
		mux.Handle("/ws", s.opts.Push)
	}
	if s.opts.FilesDir != "" {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(s.opts.FilesDir))))
	}

	return corsMiddleware(trace.Middleware(mux))
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		trace.Logger(ctx).Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type upload struct {
	userID   string
	fileName string
	audio    []byte
}

func readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	userID := r.FormValue("userId")
	if userID == "" {
		return nil, errors.New("userId is required")
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required: %w", err)
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &upload{userID: userID, fileName: hdr.Filename, audio: audio}, nil
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.ingest.Recognize(r.Context(), up.userID, up.fileName, up.audio)
	if err != nil {
		status, msg := classify(err)
		resp := map[string]any{"success": false, "message": msg, "fileName": up.fileName, "fileSize": len(up.audio)}
		if res != nil && res.Transcript != "" {
			resp["transcript"] = res.Transcript
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"transcript": res.Transcript,
		"fileName":   res.FileName,
		"fileSize":   res.FileSize,
		"message":    "recognition succeeded, confirm to save",
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	transcript := r.FormValue("transcript")
	if transcript == "" {
		writeError(w, http.StatusBadRequest, errors.New("transcript is required"))
		return
	}

	res, err := s.ingest.Save(r.Context(), up.userID, up.fileName, up.audio, transcript)
	if err != nil {
		trace.Logger(r.Context()).Error("save failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"recordId":        res.RecordID,
		"ossUrl":          res.StorageURL,
		"transcript":      res.Transcript,
		"fileName":        res.FileName,
		"vectorDimension": res.VectorDimension,
		"saveTime":        res.SaveTime.Format(time.RFC3339),
		"message":         "saved",
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.ingest.Upload(r.Context(), up.userID, up.fileName, up.audio)
	if err != nil {
		status, msg := classify(err)
		resp := map[string]any{"success": false, "message": msg}
		if res != nil {
			resp["recordId"] = res.RecordID
			resp["ossUrl"] = res.StorageURL
			resp["transcript"] = res.Transcript
		}
		trace.Logger(r.Context()).Error("upload failed", "error", err)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"recordId":   res.RecordID,
		"ossUrl":     res.StorageURL,
		"transcript": res.Transcript,
		"message":    "recognition succeeded",
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := s.queries.ListRecords(r.Context(), store.ListParams{
		UserID: q.Get("userId"),
		Status: q.Get("status"),
		Limit:  limitParam(q.Get("limit")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []model.VoiceRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sums, err := s.queries.ListSummaries(r.Context(), store.ListParams{
		UserID: q.Get("userId"),
		Status: q.Get("pushStatus"),
		Limit:  limitParam(q.Get("limit")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sums == nil {
		sums = []model.DailySummary{}
	}
	writeJSON(w, http.StatusOK, sums)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}

	params := store.SearchParams{UserID: q.Get("userId"), Query: query, Limit: limitParam(q.Get("limit"))}
	if s.opts.Embedder != nil {
		vec, err := s.opts.Embedder.Embed(r.Context(), query)
		if err != nil {
			trace.Logger(r.Context()).Warn("embed query failed, substring order only", "error", err)
		} else {
			params.Vector = vec
		}
	}

	results, err := s.queries.Search(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for i := range results {
		results[i].Embedding = nil
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	out, err := s.runner.RunToday(r.Context())
	if errors.Is(err, summary.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// classify maps pipeline errors to a status code and client message.
func classify(err error) (int, string) {
	var cerr *credential.Error
	var aerr *asr.ProviderError
	switch {
	case errors.As(err, &cerr):
		return http.StatusBadGateway, "speech service credential unavailable"
	case errors.As(err, &aerr):
		return http.StatusBadGateway, "recognition failed: " + aerr.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func limitParam(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "message": err.Error()})
}
