// Package model defines the core voice-note data types.
package model

import "time"

// RecordStatus is the processing state of an uploaded recording.
type RecordStatus string

const (
	RecordProcessing RecordStatus = "processing"
	RecordCompleted  RecordStatus = "completed"
	RecordFailed     RecordStatus = "failed"
)

// PushStatus tracks whether a daily summary has been delivered to its user.
type PushStatus string

const (
	NotPushed PushStatus = "not_pushed"
	Pushed    PushStatus = "pushed"
)

// DateLayout is the calendar-date format used for summary dates.
const DateLayout = "2006-01-02"

// VoiceRecord represents one uploaded audio file.
type VoiceRecord struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	FileName        string       `json:"file_name"`
	StorageURL      string       `json:"storage_url"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty"`
	Status          RecordStatus `json:"status"`
	UploadTime      time.Time    `json:"upload_time"`
}

// VoiceTranscript is the recognized text of a record plus its embedding.
type VoiceTranscript struct {
	ID         string    `json:"id"`
	RecordID   string    `json:"record_id"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DailySummary is the LLM digest of one user's transcripts for one day.
type DailySummary struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	SummaryText string     `json:"summary_text"`
	Keywords    string     `json:"keywords,omitempty"`
	Date        string     `json:"date"`
	PushStatus  PushStatus `json:"push_status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ValidStatuses are the allowed record statuses.
var ValidStatuses = map[RecordStatus]bool{
	RecordProcessing: true,
	RecordCompleted:  true,
	RecordFailed:     true,
}
