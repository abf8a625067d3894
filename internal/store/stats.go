package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath           string         `json:"db_path"`
	DBSizeBytes      int64          `json:"db_size_bytes"`
	TotalRecords     int            `json:"total_records"`
	TotalTranscripts int            `json:"total_transcripts"`
	TotalSummaries   int            `json:"total_summaries"`
	PendingPushes    int            `json:"pending_pushes"`
	RecordsByStatus  map[string]int `json:"records_by_status"`
	Users            []UserStats    `json:"users"`
}

// UserStats holds per-user counts.
type UserStats struct {
	UserID      string `json:"user_id"`
	Records     int    `json:"records"`
	Transcripts int    `json:"transcripts"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, RecordsByStatus: map[string]int{}}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM voice_records`).Scan(&st.TotalRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM voice_transcripts`).Scan(&st.TotalTranscripts)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_summaries`).Scan(&st.TotalSummaries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_summaries WHERE push_status = 'not_pushed'`).Scan(&st.PendingPushes)

	statusRows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM voice_records GROUP BY status`)
	if err != nil {
		return st, err
	}
	for statusRows.Next() {
		var status string
		var n int
		statusRows.Scan(&status, &n)
		st.RecordsByStatus[status] = n
	}
	statusRows.Close()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.user_id, COUNT(DISTINCT r.id), COUNT(DISTINCT t.id)
		FROM voice_records r
		LEFT JOIN voice_transcripts t ON t.record_id = r.id
		GROUP BY r.user_id ORDER BY COUNT(DISTINCT r.id) DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var u UserStats
		rows.Scan(&u.UserID, &u.Records, &u.Transcripts)
		st.Users = append(st.Users, u)
	}

	return st, nil
}
