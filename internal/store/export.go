package store

import (
	"context"

	"github.com/rcliao/voicenote/internal/model"
)

// Export is a full dump of one user's (or every user's) data.
type Export struct {
	Records     []model.VoiceRecord     `json:"records"`
	Transcripts []model.VoiceTranscript `json:"transcripts"`
	Summaries   []model.DailySummary    `json:"summaries"`
}

// ExportAll returns all rows, optionally filtered by user.
func (s *SQLiteStore) ExportAll(ctx context.Context, userID string) (*Export, error) {
	filter := ""
	args := []interface{}{}
	if userID != "" {
		filter = " WHERE user_id = ?"
		args = append(args, userID)
	}

	out := &Export{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, file_name, storage_url, duration, status, upload_time
		 FROM voice_records`+filter+` ORDER BY upload_time`, args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out.Records = append(out.Records, r)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, record_id, user_id, text, embedding, confidence, created_at
		 FROM voice_transcripts`+filter+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out.Transcripts = append(out.Transcripts, t)
	}
	rows.Close()

	out.Summaries, err = s.querySummaries(ctx,
		`SELECT id, user_id, summary_text, keywords, date, push_status, created_at
		 FROM daily_summaries`+filter+` ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// TranscriptsOn returns a user's full transcripts for a date (YYYY-MM-DD), in insertion order.
func (s *SQLiteStore) TranscriptsOn(ctx context.Context, userID string, date string) ([]model.VoiceTranscript, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, user_id, text, embedding, confidence, created_at
		 FROM voice_transcripts WHERE user_id = ? AND created_date = ? ORDER BY rowid`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VoiceTranscript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SummaryOn returns a user's summary for a date (YYYY-MM-DD).
func (s *SQLiteStore) SummaryOn(ctx context.Context, userID, date string) (*model.DailySummary, error) {
	sums, err := s.querySummaries(ctx,
		`SELECT id, user_id, summary_text, keywords, date, push_status, created_at
		 FROM daily_summaries WHERE user_id = ? AND date = ?`, userID, date)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return nil, ErrNotFound
	}
	return &sums[0], nil
}
