// Package output renders CLI results as JSON or styled text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/rcliao/voicenote/internal/summary"
)

var (
	colorCyan   = lipgloss.Color("#00FFFF")
	colorGreen  = lipgloss.Color("#00FF00")
	colorYellow = lipgloss.Color("#FFFF00")
	colorRed    = lipgloss.Color("#FF0000")
	colorGray   = lipgloss.Color("#666666")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle = lipgloss.NewStyle().Foreground(colorGray)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	errStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

// Formatter writes results in the selected format.
type Formatter struct {
	w    io.Writer
	text bool
}

// New returns a formatter for format ("json" or "text").
func New(format string, w io.Writer) (*Formatter, error) {
	switch format {
	case "", "json":
		return &Formatter{w: w}, nil
	case "text":
		return &Formatter{w: w, text: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSON writes v as indented JSON regardless of format.
func (f *Formatter) JSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(f.w, string(b))
	return err
}

// Records writes voice records.
func (f *Formatter) Records(recs []model.VoiceRecord) error {
	if !f.text {
		return f.JSON(nonNil(recs))
	}
	if len(recs) == 0 {
		return f.line(labelStyle.Render("no records"))
	}
	for _, r := range recs {
		f.line(fmt.Sprintf("%s  %s  %s  %s",
			titleStyle.Render(r.ID),
			statusStyle(r.Status).Render(string(r.Status)),
			labelStyle.Render(r.UploadTime.Local().Format("2006-01-02 15:04")),
			r.FileName))
		f.line("  " + labelStyle.Render("user ") + r.UserID + "  " + labelStyle.Render("url ") + r.StorageURL)
	}
	return nil
}

// Summaries writes daily summaries.
func (f *Formatter) Summaries(sums []model.DailySummary) error {
	if !f.text {
		return f.JSON(nonNil(sums))
	}
	if len(sums) == 0 {
		return f.line(labelStyle.Render("no summaries"))
	}
	for _, s := range sums {
		push := warnStyle.Render(string(s.PushStatus))
		if s.PushStatus == model.Pushed {
			push = okStyle.Render(string(s.PushStatus))
		}
		f.line(fmt.Sprintf("%s  %s  %s", titleStyle.Render(s.Date), s.UserID, push))
		f.line(indent(s.SummaryText))
	}
	return nil
}

// SearchResults writes transcript search hits.
func (f *Formatter) SearchResults(results []store.SearchResult) error {
	if !f.text {
		return f.JSON(nonNil(results))
	}
	if len(results) == 0 {
		return f.line(labelStyle.Render("no matches"))
	}
	for _, r := range results {
		f.line(fmt.Sprintf("%s  %s  %s",
			titleStyle.Render(r.RecordID),
			labelStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")),
			labelStyle.Render(fmt.Sprintf("score %.3f", r.Score))))
		f.line(indent(r.Text))
	}
	return nil
}

// Stats writes database statistics.
func (f *Formatter) Stats(st *store.Stats) error {
	if !f.text {
		return f.JSON(st)
	}
	f.line(titleStyle.Render("voicenote") + "  " + labelStyle.Render(st.DBPath))
	f.kv("size", fmt.Sprintf("%d bytes", st.DBSizeBytes))
	f.kv("records", fmt.Sprint(st.TotalRecords))
	f.kv("transcripts", fmt.Sprint(st.TotalTranscripts))
	f.kv("summaries", fmt.Sprint(st.TotalSummaries))
	f.kv("pending pushes", fmt.Sprint(st.PendingPushes))

	statuses := make([]string, 0, len(st.RecordsByStatus))
	for s := range st.RecordsByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		f.kv("  "+s, fmt.Sprint(st.RecordsByStatus[s]))
	}
	for _, u := range st.Users {
		f.kv("user "+u.UserID, fmt.Sprintf("%d records, %d transcripts", u.Records, u.Transcripts))
	}
	return nil
}

// Outcome writes the result of a batch summary run.
func (f *Formatter) Outcome(out summary.Outcome) error {
	if !f.text {
		return f.JSON(out)
	}
	f.line(titleStyle.Render("summary run " + out.Date))
	f.kv("users", fmt.Sprint(out.Users))
	f.kv("succeeded", okStyle.Render(fmt.Sprint(out.Succeeded)))
	f.kv("skipped", fmt.Sprint(out.Skipped))
	failed := fmt.Sprint(out.Failed)
	if out.Failed > 0 {
		failed = errStyle.Render(failed)
	}
	f.kv("failed", failed)
	for _, fl := range out.Failures {
		f.line("  " + errStyle.Render(fl.UserID) + " " + fl.Err)
	}
	return nil
}

// Message writes a single status line.
func (f *Formatter) Message(key, msg string) error {
	if !f.text {
		return f.JSON(map[string]string{key: msg})
	}
	return f.line(okStyle.Render(key) + " " + msg)
}

func (f *Formatter) kv(k, v string) {
	f.line(labelStyle.Render(fmt.Sprintf("%-16s", k)) + v)
}

func (f *Formatter) line(s string) error {
	_, err := fmt.Fprintln(f.w, s)
	return err
}

func statusStyle(s model.RecordStatus) lipgloss.Style {
	switch s {
	case model.RecordCompleted:
		return okStyle
	case model.RecordFailed:
		return errStyle
	default:
		return warnStyle
	}
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
