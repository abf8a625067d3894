package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/voicenote/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTranscript(t *testing.T, s *SQLiteStore, userID, text string, at time.Time) *model.VoiceTranscript {
	t.Helper()
	ctx := context.Background()
	rec, err := s.CreateRecord(ctx, RecordParams{UserID: userID, FileName: "a.wav", StorageURL: "https://b.example/a.wav"})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	tr, err := s.AddTranscript(ctx, TranscriptParams{
		RecordID: rec.ID, UserID: userID, Text: text, Embedding: []float32{0, 0, 0}, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("add transcript: %v", err)
	}
	return tr
}

func TestCreateAndGetRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	dur := 12.5
	rec, err := s.CreateRecord(ctx, RecordParams{
		UserID: "u1", FileName: "memo.mp3", StorageURL: "https://bucket.oss/user_u1/1_memo.mp3", DurationSeconds: &dur,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected non-empty ID")
	}
	if rec.Status != model.RecordProcessing {
		t.Errorf("expected default status processing, got %s", rec.Status)
	}

	got, err := s.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FileName != "memo.mp3" || got.UserID != "u1" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 12.5 {
		t.Errorf("expected duration 12.5, got %v", got.DurationSeconds)
	}
}

func TestCreateRecordValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.CreateRecord(ctx, RecordParams{FileName: "a.wav"}); err == nil {
		t.Error("expected error for missing user id")
	}
	if _, err := s.CreateRecord(ctx, RecordParams{UserID: "u", Status: "bogus"}); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestUpdateRecordStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, _ := s.CreateRecord(ctx, RecordParams{UserID: "u1", FileName: "a.wav"})
	if err := s.UpdateRecordStatus(ctx, rec.ID, model.RecordCompleted); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetRecord(ctx, rec.ID)
	if got.Status != model.RecordCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}

	err := s.UpdateRecordStatus(ctx, "missing", model.RecordFailed)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRecord(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecordsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.CreateRecord(ctx, RecordParams{UserID: "a", FileName: "1.wav"})
	s.CreateRecord(ctx, RecordParams{UserID: "a", FileName: "2.wav", Status: model.RecordCompleted})
	s.CreateRecord(ctx, RecordParams{UserID: "b", FileName: "3.wav"})

	tests := []struct {
		name   string
		params ListParams
		want   int
	}{
		{"all", ListParams{}, 3},
		{"by user", ListParams{UserID: "a"}, 2},
		{"by status", ListParams{Status: string(model.RecordCompleted)}, 1},
		{"limit", ListParams{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRecords(ctx, tt.params)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(got))
			}
		})
	}
}

func TestAddTranscriptRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tr := addTranscript(t, s, "u1", "hello world", time.Now())
	exp, err := s.ExportAll(ctx, "u1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exp.Transcripts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(exp.Transcripts))
	}
	got := exp.Transcripts[0]
	if got.ID != tr.ID || got.Text != "hello world" {
		t.Errorf("unexpected transcript: %+v", got)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("expected embedding of 3, got %d", len(got.Embedding))
	}
}

func TestAddTranscriptOnePerRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, _ := s.CreateRecord(ctx, RecordParams{UserID: "u1", FileName: "a.wav"})
	if _, err := s.AddTranscript(ctx, TranscriptParams{RecordID: rec.ID, UserID: "u1", Text: "one"}); err != nil {
		t.Fatalf("first transcript: %v", err)
	}
	if _, err := s.AddTranscript(ctx, TranscriptParams{RecordID: rec.ID, UserID: "u1", Text: "two"}); err == nil {
		t.Error("expected error for second transcript on same record")
	}
}

func TestListUserIDsFirstSeenOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	addTranscript(t, s, "carol", "x", now)
	addTranscript(t, s, "alice", "y", now)
	addTranscript(t, s, "carol", "z", now)
	// a record without a transcript does not make a user visible
	s.CreateRecord(ctx, RecordParams{UserID: "dave", FileName: "a.wav"})

	users, err := s.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0] != "carol" || users[1] != "alice" {
		t.Errorf("expected [carol alice], got %v", users)
	}
}

func TestTranscriptTextsOnFiltersByDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)
	addTranscript(t, s, "a", "old", yesterday)
	addTranscript(t, s, "a", "foo", now)
	addTranscript(t, s, "a", "bar", now)
	addTranscript(t, s, "b", "other", now)

	texts, err := s.TranscriptTextsOn(ctx, "a", now)
	if err != nil {
		t.Fatalf("texts: %v", err)
	}
	if len(texts) != 2 || texts[0] != "foo" || texts[1] != "bar" {
		t.Errorf("expected [foo bar], got %v", texts)
	}

	old, _ := s.TranscriptTextsOn(ctx, "a", yesterday)
	if len(old) != 1 || old[0] != "old" {
		t.Errorf("expected [old], got %v", old)
	}

	none, _ := s.TranscriptTextsOn(ctx, "nobody", now)
	if len(none) != 0 {
		t.Errorf("expected no texts, got %v", none)
	}
}

func TestAddSummaryDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	day := time.Now()

	sum, err := s.AddSummary(ctx, SummaryParams{UserID: "a", SummaryText: "digest", Date: day})
	if err != nil {
		t.Fatalf("add summary: %v", err)
	}
	if sum.PushStatus != model.NotPushed {
		t.Errorf("expected not_pushed, got %s", sum.PushStatus)
	}
	if sum.Date != day.Format(model.DateLayout) {
		t.Errorf("expected date %s, got %s", day.Format(model.DateLayout), sum.Date)
	}

	_, err = s.AddSummary(ctx, SummaryParams{UserID: "a", SummaryText: "again", Date: day})
	if !errors.Is(err, ErrDuplicateSummary) {
		t.Errorf("expected ErrDuplicateSummary, got %v", err)
	}

	// other user, same day and same user, other day are fine
	if _, err := s.AddSummary(ctx, SummaryParams{UserID: "b", SummaryText: "x", Date: day}); err != nil {
		t.Errorf("other user: %v", err)
	}
	if _, err := s.AddSummary(ctx, SummaryParams{UserID: "a", SummaryText: "x", Date: day.AddDate(0, 0, -1)}); err != nil {
		t.Errorf("other day: %v", err)
	}

	has, _ := s.HasSummary(ctx, "a", day)
	if !has {
		t.Error("expected HasSummary true")
	}
	has, _ = s.HasSummary(ctx, "c", day)
	if has {
		t.Error("expected HasSummary false for unknown user")
	}

	all, _ := s.ListSummaries(ctx, ListParams{UserID: "a"})
	if len(all) != 2 {
		t.Errorf("expected 2 summaries for a, got %d", len(all))
	}
}

func TestPendingAndMarkPushed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	day := time.Now()

	older, _ := s.AddSummary(ctx, SummaryParams{UserID: "a", SummaryText: "old", Date: day.AddDate(0, 0, -1)})
	newer, _ := s.AddSummary(ctx, SummaryParams{UserID: "a", SummaryText: "new", Date: day})

	pending, err := s.PendingSummaries(ctx, "a")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != older.ID || pending[1].ID != newer.ID {
		t.Fatalf("expected oldest-first pending, got %+v", pending)
	}

	if err := s.MarkPushed(ctx, older.ID); err != nil {
		t.Fatalf("mark pushed: %v", err)
	}
	pending, _ = s.PendingSummaries(ctx, "a")
	if len(pending) != 1 || pending[0].ID != newer.ID {
		t.Errorf("expected only newer pending, got %+v", pending)
	}

	if err := s.MarkPushed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	pushed, _ := s.ListSummaries(ctx, ListParams{UserID: "a", Status: string(model.Pushed)})
	if len(pushed) != 1 || pushed[0].ID != older.ID {
		t.Errorf("expected older pushed, got %+v", pushed)
	}
}

func TestSummaryOn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	day := time.Now()

	s.AddSummary(ctx, SummaryParams{UserID: "a", SummaryText: "digest", Keywords: "work", Date: day})

	got, err := s.SummaryOn(ctx, "a", day.Format(model.DateLayout))
	if err != nil {
		t.Fatalf("summary on: %v", err)
	}
	if got.SummaryText != "digest" || got.Keywords != "work" {
		t.Errorf("unexpected summary: %+v", got)
	}

	if _, err := s.SummaryOn(ctx, "a", "1999-01-01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	addTranscript(t, s, "a", "one", time.Now())
	addTranscript(t, s, "a", "two", time.Now())
	s.CreateRecord(ctx, RecordParams{UserID: "b", FileName: "x.wav", Status: model.RecordFailed})
	s.AddSummary(ctx, SummaryParams{UserID: "a", SummaryText: "d", Date: time.Now()})

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRecords != 3 || st.TotalTranscripts != 2 || st.TotalSummaries != 1 {
		t.Errorf("unexpected totals: %+v", st)
	}
	if st.PendingPushes != 1 {
		t.Errorf("expected 1 pending push, got %d", st.PendingPushes)
	}
	if st.RecordsByStatus["failed"] != 1 || st.RecordsByStatus["processing"] != 2 {
		t.Errorf("unexpected status counts: %v", st.RecordsByStatus)
	}
	if len(st.Users) != 2 || st.Users[0].UserID != "a" || st.Users[0].Transcripts != 2 {
		t.Errorf("unexpected user stats: %+v", st.Users)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "voicenote.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store with nested path: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
