package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/rcliao/voicenote/internal/summary"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("yaml", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestJSONEmptyListIsArray(t *testing.T) {
	var buf bytes.Buffer
	f, _ := New("json", &buf)
	if err := f.Records(nil); err != nil {
		t.Fatalf("records: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("output = %q, want []", got)
	}
}

func TestTextOutput(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local)

	tests := []struct {
		name  string
		write func(*Formatter) error
		want  []string
	}{
		{
			name: "records",
			write: func(f *Formatter) error {
				return f.Records([]model.VoiceRecord{{
					ID: "01REC", UserID: "u1", FileName: "memo.wav",
					Status: model.RecordCompleted, UploadTime: now,
				}})
			},
			want: []string{"01REC", "completed", "memo.wav", "u1"},
		},
		{
			name: "summaries",
			write: func(f *Formatter) error {
				return f.Summaries([]model.DailySummary{{
					UserID: "u1", Date: "2026-03-04", SummaryText: "line one\nline two",
					PushStatus: model.NotPushed,
				}})
			},
			want: []string{"2026-03-04", "not_pushed", "    line one", "    line two"},
		},
		{
			name: "search",
			write: func(f *Formatter) error {
				return f.SearchResults([]store.SearchResult{{
					VoiceTranscript: model.VoiceTranscript{RecordID: "01REC", Text: "buy milk", CreatedAt: now},
					Score:           0.5,
				}})
			},
			want: []string{"01REC", "score 0.500", "buy milk"},
		},
		{
			name: "outcome",
			write: func(f *Formatter) error {
				return f.Outcome(summary.Outcome{
					Date: "2026-03-04", Users: 2, Succeeded: 1, Failed: 1,
					Failures: []summary.Failure{{UserID: "u2", Err: "boom"}},
				})
			},
			want: []string{"summary run 2026-03-04", "u2", "boom"},
		},
		{
			name:  "empty records",
			write: func(f *Formatter) error { return f.Records(nil) },
			want:  []string{"no records"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f, err := New("text", &buf)
			if err != nil {
				t.Fatal(err)
			}
			if err := tt.write(f); err != nil {
				t.Fatalf("write: %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestStatsJSON(t *testing.T) {
	var buf bytes.Buffer
	f, _ := New("json", &buf)
	if err := f.Stats(&store.Stats{DBPath: "/tmp/v.db", TotalRecords: 3}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"total_records": 3`) {
		t.Errorf("unexpected json: %s", buf.String())
	}
}
