// Package summary builds one daily digest per user from that day's transcripts.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rcliao/voicenote/internal/llm"
	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/rcliao/voicenote/internal/trace"
)

// ErrAlreadyRunning is returned when Run is called while a run is in flight.
var ErrAlreadyRunning = errors.New("summary job already running")

// Source is the part of store.Store the job reads from and writes to.
type Source interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	TranscriptTextsOn(ctx context.Context, userID string, day time.Time) ([]string, error)
	HasSummary(ctx context.Context, userID string, day time.Time) (bool, error)
	AddSummary(ctx context.Context, p store.SummaryParams) (*model.DailySummary, error)
}

// Failure is one user's error from a run.
type Failure struct {
	UserID string `json:"user_id"`
	Err    string `json:"error"`
}

// Outcome tallies a run. Users = Succeeded + Skipped + Failed.
type Outcome struct {
	Date      string                `json:"date"`
	Users     int                   `json:"users"`
	Succeeded int                   `json:"succeeded"`
	Skipped   int                   `json:"skipped"`
	Failed    int                   `json:"failed"`
	Failures  []Failure             `json:"failures,omitempty"`
	Created   []*model.DailySummary `json:"-"`
}

// Job runs the daily summarization.
type Job struct {
	src        Source
	summarizer llm.Summarizer
	now        func() time.Time

	running sync.Mutex
	onDone  []func(context.Context, Outcome)
}

// New creates a job.
func New(src Source, summarizer llm.Summarizer) *Job {
	return &Job{src: src, summarizer: summarizer, now: time.Now}
}

// OnComplete registers fn to be called after every finished run.
func (j *Job) OnComplete(fn func(context.Context, Outcome)) {
	j.onDone = append(j.onDone, fn)
}

// RunToday runs for the current local date.
func (j *Job) RunToday(ctx context.Context) (Outcome, error) {
	return j.Run(ctx, j.now())
}

// Run summarizes every known user's transcripts from day's local date. One
// user's failure does not stop the others. The returned error is non-nil only
// when the run could not start or the user list could not be read.
func (j *Job) Run(ctx context.Context, day time.Time) (Outcome, error) {
	if !j.running.TryLock() {
		return Outcome{}, ErrAlreadyRunning
	}
	defer j.running.Unlock()

	ctx, _ = trace.Ensure(ctx)
	date := day.In(time.Local).Format(model.DateLayout)
	log := trace.Logger(ctx).With("date", date)
	out := Outcome{Date: date}

	users, err := j.src.ListUserIDs(ctx)
	if err != nil {
		return out, fmt.Errorf("list users: %w", err)
	}
	log.Info("summary run started", "users", len(users))

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Users++

		created, err := j.runUser(ctx, userID, day)
		switch {
		case err != nil:
			out.Failed++
			out.Failures = append(out.Failures, Failure{UserID: userID, Err: err.Error()})
			log.Warn("summary failed", "user_id", userID, "error", err)
		case created == nil:
			out.Skipped++
		default:
			out.Succeeded++
			out.Created = append(out.Created, created)
			log.Debug("summary stored", "user_id", userID, "summary_id", created.ID)
		}
	}

	log.Info("summary run finished",
		"users", out.Users,
		"succeeded", out.Succeeded,
		"skipped", out.Skipped,
		"failed", out.Failed)

	for _, fn := range j.onDone {
		fn(ctx, out)
	}
	return out, nil
}

// runUser returns (nil, nil) when the user is skipped.
func (j *Job) runUser(ctx context.Context, userID string, day time.Time) (*model.DailySummary, error) {
	texts, err := j.src.TranscriptTextsOn(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("load transcripts: %w", err)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	done, err := j.src.HasSummary(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("check summary: %w", err)
	}
	if done {
		return nil, nil
	}

	text, err := j.summarizer.Summarize(ctx, strings.Join(texts, "\n"))
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	sum, err := j.src.AddSummary(ctx, store.SummaryParams{UserID: userID, SummaryText: text, Date: day})
	if errors.Is(err, store.ErrDuplicateSummary) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	return sum, nil
}
