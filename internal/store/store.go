// Package store provides the voice-note storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/voicenote/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateSummary is returned when a summary already exists for the user and date.
var ErrDuplicateSummary = errors.New("daily summary already exists")

// RecordParams holds parameters for creating a voice record.
type RecordParams struct {
	UserID          string
	FileName        string
	StorageURL      string
	DurationSeconds *float64
	Status          model.RecordStatus
}

// TranscriptParams holds parameters for storing a transcript.
type TranscriptParams struct {
	RecordID   string
	UserID     string
	Text       string
	Embedding  []float32
	Confidence *float64
	CreatedAt  time.Time // zero means now
}

// SummaryParams holds parameters for storing a daily summary.
type SummaryParams struct {
	UserID      string
	SummaryText string
	Keywords    string
	Date        time.Time
}

// ListParams holds parameters for listing records or summaries.
type ListParams struct {
	UserID string
	Status string
	Limit  int
}

// Store defines the voice-note storage interface.
type Store interface {
	// CreateRecord stores a new voice record and returns it with its ID.
	CreateRecord(ctx context.Context, p RecordParams) (*model.VoiceRecord, error)

	// UpdateRecordStatus moves a record to a new status.
	UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus) error

	// GetRecord fetches one record by ID.
	GetRecord(ctx context.Context, id string) (*model.VoiceRecord, error)

	// ListRecords lists records newest first.
	ListRecords(ctx context.Context, p ListParams) ([]model.VoiceRecord, error)

	// AddTranscript stores the single transcript of a record.
	AddTranscript(ctx context.Context, p TranscriptParams) (*model.VoiceTranscript, error)

	// ListUserIDs returns every user with at least one transcript, in first-seen order.
	ListUserIDs(ctx context.Context) ([]string, error)

	// TranscriptTextsOn returns a user's transcript texts created on day's local date,
	// in insertion order.
	TranscriptTextsOn(ctx context.Context, userID string, day time.Time) ([]string, error)

	// AddSummary stores a daily summary. Returns ErrDuplicateSummary when the
	// user already has one for that date.
	AddSummary(ctx context.Context, p SummaryParams) (*model.DailySummary, error)

	// HasSummary reports whether a summary exists for the user on day's local date.
	HasSummary(ctx context.Context, userID string, day time.Time) (bool, error)

	// ListSummaries lists summaries newest first.
	ListSummaries(ctx context.Context, p ListParams) ([]model.DailySummary, error)

	// PendingSummaries returns a user's summaries not yet pushed, oldest first.
	PendingSummaries(ctx context.Context, userID string) ([]model.DailySummary, error)

	// MarkPushed sets a summary's push status to pushed.
	MarkPushed(ctx context.Context, id string) error

	// Close closes the store.
	Close() error
}

func localDate(t time.Time) string {
	return t.In(time.Local).Format(model.DateLayout)
}
