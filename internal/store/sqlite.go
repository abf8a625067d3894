package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/voicenote/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS voice_records (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		file_name   TEXT NOT NULL,
		storage_url TEXT NOT NULL,
		duration    REAL,
		status      TEXT NOT NULL DEFAULT 'processing',
		upload_time TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_user ON voice_records(user_id, upload_time DESC);

	CREATE TABLE IF NOT EXISTS voice_transcripts (
		id           TEXT PRIMARY KEY,
		record_id    TEXT NOT NULL UNIQUE REFERENCES voice_records(id),
		user_id      TEXT NOT NULL,
		text         TEXT NOT NULL,
		embedding    TEXT,
		confidence   REAL,
		created_at   TEXT NOT NULL,
		created_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_user_date ON voice_transcripts(user_id, created_date);

	CREATE TABLE IF NOT EXISTS daily_summaries (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		summary_text TEXT NOT NULL,
		keywords     TEXT,
		date         TEXT NOT NULL,
		push_status  TEXT NOT NULL DEFAULT 'not_pushed',
		created_at   TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS uk_summaries_user_date ON daily_summaries(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_summaries_push ON daily_summaries(user_id, push_status);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, p RecordParams) (*model.VoiceRecord, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	status := p.Status
	if status == "" {
		status = model.RecordProcessing
	}
	if !model.ValidStatuses[status] {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	now := time.Now().UTC()
	id := s.newID()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO voice_records (id, user_id, file_name, storage_url, duration, status, upload_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.UserID, p.FileName, p.StorageURL, p.DurationSeconds, string(status), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	return &model.VoiceRecord{
		ID:              id,
		UserID:          p.UserID,
		FileName:        p.FileName,
		StorageURL:      p.StorageURL,
		DurationSeconds: p.DurationSeconds,
		Status:          status,
		UploadTime:      now,
	}, nil
}

func (s *SQLiteStore) UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus) error {
	if !model.ValidStatuses[status] {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE voice_records SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.VoiceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, file_name, storage_url, duration, status, upload_time
		 FROM voice_records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, p ListParams) ([]model.VoiceRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1 = 1"}
	var args []interface{}
	if p.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, p.UserID)
	}
	if p.Status != "" {
		where = append(where, "status = ?")
		args = append(args, p.Status)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, file_name, storage_url, duration, status, upload_time
		FROM voice_records
		WHERE %s
		ORDER BY upload_time DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.VoiceRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) AddTranscript(ctx context.Context, p TranscriptParams) (*model.VoiceTranscript, error) {
	if p.RecordID == "" || p.UserID == "" {
		return nil, fmt.Errorf("record id and user id are required")
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var embeddingJSON *string
	if p.Embedding != nil {
		b, err := json.Marshal(p.Embedding)
		if err != nil {
			return nil, fmt.Errorf("encode embedding: %w", err)
		}
		s := string(b)
		embeddingJSON = &s
	}

	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO voice_transcripts (id, record_id, user_id, text, embedding, confidence, created_at, created_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.RecordID, p.UserID, p.Text, embeddingJSON, p.Confidence,
		createdAt.UTC().Format(time.RFC3339Nano), localDate(createdAt))
	if err != nil {
		return nil, fmt.Errorf("insert transcript: %w", err)
	}

	return &model.VoiceTranscript{
		ID:         id,
		RecordID:   p.RecordID,
		UserID:     p.UserID,
		Text:       p.Text,
		Embedding:  p.Embedding,
		Confidence: p.Confidence,
		CreatedAt:  createdAt.UTC(),
	}, nil
}

func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM voice_transcripts GROUP BY user_id ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) TranscriptTextsOn(ctx context.Context, userID string, day time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM voice_transcripts
		 WHERE user_id = ? AND created_date = ?
		 ORDER BY rowid`, userID, localDate(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

func (s *SQLiteStore) AddSummary(ctx context.Context, p SummaryParams) (*model.DailySummary, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	now := time.Now().UTC()
	id := s.newID()
	date := localDate(p.Date)

	var keywords *string
	if p.Keywords != "" {
		keywords = &p.Keywords
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_summaries (id, user_id, summary_text, keywords, date, push_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, date) DO NOTHING`,
		id, p.UserID, p.SummaryText, keywords, date, string(model.NotPushed), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%s on %s: %w", p.UserID, date, ErrDuplicateSummary)
	}

	return &model.DailySummary{
		ID:          id,
		UserID:      p.UserID,
		SummaryText: p.SummaryText,
		Keywords:    p.Keywords,
		Date:        date,
		PushStatus:  model.NotPushed,
		CreatedAt:   now,
	}, nil
}

func (s *SQLiteStore) HasSummary(ctx context.Context, userID string, day time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_summaries WHERE user_id = ? AND date = ?`,
		userID, localDate(day)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListSummaries(ctx context.Context, p ListParams) ([]model.DailySummary, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1 = 1"}
	var args []interface{}
	if p.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, p.UserID)
	}
	if p.Status != "" {
		where = append(where, "push_status = ?")
		args = append(args, p.Status)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, summary_text, keywords, date, push_status, created_at
		FROM daily_summaries
		WHERE %s
		ORDER BY date DESC, created_at DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	return s.querySummaries(ctx, query, args...)
}

func (s *SQLiteStore) PendingSummaries(ctx context.Context, userID string) ([]model.DailySummary, error) {
	return s.querySummaries(ctx,
		`SELECT id, user_id, summary_text, keywords, date, push_status, created_at
		 FROM daily_summaries
		 WHERE user_id = ? AND push_status = ?
		 ORDER BY date ASC`, userID, string(model.NotPushed))
}

func (s *SQLiteStore) MarkPushed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE daily_summaries SET push_status = ? WHERE id = ?`, string(model.Pushed), id)
	if err != nil {
		return fmt.Errorf("mark pushed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("summary %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) querySummaries(ctx context.Context, query string, args ...interface{}) ([]model.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.DailySummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (model.VoiceRecord, error) {
	var r model.VoiceRecord
	var duration sql.NullFloat64
	var status, uploadTime string

	err := row.Scan(&r.ID, &r.UserID, &r.FileName, &r.StorageURL, &duration, &status, &uploadTime)
	if err != nil {
		return r, err
	}

	r.Status = model.RecordStatus(status)
	r.UploadTime, _ = time.Parse(time.RFC3339Nano, uploadTime)
	if duration.Valid {
		d := duration.Float64
		r.DurationSeconds = &d
	}
	return r, nil
}

func scanTranscript(row scanner) (model.VoiceTranscript, error) {
	var t model.VoiceTranscript
	var embedding sql.NullString
	var confidence sql.NullFloat64
	var createdAt string

	err := row.Scan(&t.ID, &t.RecordID, &t.UserID, &t.Text, &embedding, &confidence, &createdAt)
	if err != nil {
		return t, err
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if embedding.Valid {
		json.Unmarshal([]byte(embedding.String), &t.Embedding)
	}
	if confidence.Valid {
		c := confidence.Float64
		t.Confidence = &c
	}
	return t, nil
}

func scanSummary(row scanner) (model.DailySummary, error) {
	var sum model.DailySummary
	var keywords sql.NullString
	var pushStatus, createdAt string

	err := row.Scan(&sum.ID, &sum.UserID, &sum.SummaryText, &keywords, &sum.Date, &pushStatus, &createdAt)
	if err != nil {
		return sum, err
	}

	sum.PushStatus = model.PushStatus(pushStatus)
	sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if keywords.Valid {
		sum.Keywords = keywords.String
	}
	return sum, nil
}
