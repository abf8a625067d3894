package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/voicenote/internal/asr"
	"github.com/rcliao/voicenote/internal/embedding"
	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/store"
)

type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type fakeObjects struct {
	log *recorder
	err error
}

func (f *fakeObjects) Put(_ context.Context, key string, rd io.Reader, size int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(rd)
	f.log.add("put %s %d/%d", key, len(b), size)
	return "https://bucket.oss/" + key, nil
}

type fakeASR struct {
	log  *recorder
	text string
	err  error
}

func (f *fakeASR) TranscribeBuffer(_ context.Context, audio []byte, format string) (string, error) {
	f.log.add("asr buffer %s %d", format, len(audio))
	return f.text, f.err
}

func (f *fakeASR) TranscribeURL(_ context.Context, url string) (string, error) {
	f.log.add("asr url %s", url)
	return f.text, f.err
}

type fakeEmbedder struct {
	log *recorder
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	f.log.add("embed %s", text)
	return make(embedding.Vector, 1536), nil
}

func (f *fakeEmbedder) Dims() int { return 1536 }

type fakeRecords struct {
	log *recorder
}

func (f *fakeRecords) CreateRecord(_ context.Context, p store.RecordParams) (*model.VoiceRecord, error) {
	f.log.add("record %s %s", p.Status, p.StorageURL)
	return &model.VoiceRecord{ID: "rec-1", UserID: p.UserID, FileName: p.FileName, StorageURL: p.StorageURL, Status: p.Status}, nil
}

func (f *fakeRecords) UpdateRecordStatus(_ context.Context, id string, status model.RecordStatus) error {
	f.log.add("status %s %s", id, status)
	return nil
}

func (f *fakeRecords) AddTranscript(_ context.Context, p store.TranscriptParams) (*model.VoiceTranscript, error) {
	f.log.add("transcript %s %s %s %d", p.RecordID, p.UserID, p.Text, len(p.Embedding))
	return &model.VoiceTranscript{ID: "tr-1", RecordID: p.RecordID, UserID: p.UserID, Text: p.Text}, nil
}

func newTestPipeline(asrText string, asrErr error) (*Pipeline, *recorder) {
	log := &recorder{}
	p := New(&fakeObjects{log: log}, &fakeASR{log: log, text: asrText, err: asrErr}, &fakeEmbedder{log: log}, &fakeRecords{log: log})
	p.now = func() time.Time { return time.UnixMilli(1000) }
	return p, log
}

func TestUploadSequence(t *testing.T) {
	p, log := newTestPipeline("hello", nil)

	res, err := p.Upload(context.Background(), "u1", "memo.wav", []byte("RIFF"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	url := "https://bucket.oss/user_u1/1000_memo.wav"
	want := []string{
		"put user_u1/1000_memo.wav 4/4",
		"record processing " + url,
		"asr url " + url,
		"embed hello",
		"transcript rec-1 u1 hello 1536",
		"status rec-1 completed",
	}
	if !reflect.DeepEqual(log.calls, want) {
		t.Errorf("unexpected call sequence:\ngot  %q\nwant %q", log.calls, want)
	}
	if res.RecordID != "rec-1" || res.Transcript != "hello" || res.StorageURL != url || res.VectorDimension != 1536 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestUploadTranscriptionFailure(t *testing.T) {
	perr := &asr.ProviderError{StatusCode: 500, Sentinel: "ASR_ERROR: HTTP 500 - boom"}
	p, log := newTestPipeline("ASR_ERROR: HTTP 500 - boom", perr)

	res, err := p.Upload(context.Background(), "u1", "memo.wav", []byte("RIFF"))
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
	var got *asr.ProviderError
	if !errors.As(err, &got) {
		t.Errorf("expected provider error in chain, got %v", err)
	}
	if res == nil || !asr.IsSentinel(res.Transcript) {
		t.Errorf("expected sentinel transcript in result, got %+v", res)
	}

	last := log.calls[len(log.calls)-1]
	if last != "status rec-1 failed" {
		t.Errorf("expected record marked failed, got %q", last)
	}
	for _, c := range log.calls {
		if strings.HasPrefix(c, "transcript") || strings.HasPrefix(c, "embed") {
			t.Errorf("no transcript should be stored, saw %q", c)
		}
	}
}

func TestUploadStorageFailure(t *testing.T) {
	log := &recorder{}
	p := New(&fakeObjects{log: log, err: errors.New("bucket gone")}, &fakeASR{log: log}, &fakeEmbedder{log: log}, &fakeRecords{log: log})

	if _, err := p.Upload(context.Background(), "u1", "a.wav", []byte("x")); err == nil {
		t.Fatal("expected storage error")
	}
	if len(log.calls) != 0 {
		t.Errorf("expected nothing after storage failure, got %q", log.calls)
	}
}

func TestSaveSequence(t *testing.T) {
	p, log := newTestPipeline("", nil)

	res, err := p.Save(context.Background(), "u2", "clip.mp3", []byte("ID3"), "confirmed text")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	url := "https://bucket.oss/user_u2/1000_clip.mp3"
	want := []string{
		"put user_u2/1000_clip.mp3 3/3",
		"record completed " + url,
		"embed confirmed text",
		"transcript rec-1 u2 confirmed text 1536",
	}
	if !reflect.DeepEqual(log.calls, want) {
		t.Errorf("unexpected call sequence:\ngot  %q\nwant %q", log.calls, want)
	}
	if res.Transcript != "confirmed text" || res.FileName != "clip.mp3" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRecognizeStoresNothing(t *testing.T) {
	p, log := newTestPipeline("hi there", nil)

	res, err := p.Recognize(context.Background(), "u3", "Note.MP3", []byte("12345"))
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.Transcript != "hi there" || res.FileSize != 5 || res.FileName != "Note.MP3" {
		t.Errorf("unexpected result %+v", res)
	}
	want := []string{"asr buffer mp3 5"}
	if !reflect.DeepEqual(log.calls, want) {
		t.Errorf("unexpected calls %q", log.calls)
	}
}

func TestRecognizeProviderError(t *testing.T) {
	perr := &asr.ProviderError{Sentinel: "ASR_ERROR: bad audio"}
	p, _ := newTestPipeline("ASR_ERROR: bad audio", perr)

	res, err := p.Recognize(context.Background(), "u", "a.wav", []byte("x"))
	if !errors.As(err, new(*asr.ProviderError)) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if res.Transcript != "ASR_ERROR: bad audio" {
		t.Errorf("expected sentinel passthrough, got %q", res.Transcript)
	}
}
