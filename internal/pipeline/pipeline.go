// Package pipeline runs the ingest flows: recognize-only, confirm-and-save,
// and full upload.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/voicenote/internal/asr"
	"github.com/rcliao/voicenote/internal/embedding"
	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/objstore"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/rcliao/voicenote/internal/trace"
)

// ErrTranscriptionFailed wraps the recognition failure of an upload.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Transcriber recognizes speech from bytes or from a fetchable URL.
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, audio []byte, format string) (string, error)
	TranscribeURL(ctx context.Context, audioURL string) (string, error)
}

// Records is the part of store.Store the pipeline writes to.
type Records interface {
	CreateRecord(ctx context.Context, p store.RecordParams) (*model.VoiceRecord, error)
	UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus) error
	AddTranscript(ctx context.Context, p store.TranscriptParams) (*model.VoiceTranscript, error)
}

// Pipeline wires object storage, recognition, embedding and persistence.
type Pipeline struct {
	objects  objstore.Store
	asr      Transcriber
	embedder embedding.Embedder
	records  Records
	now      func() time.Time
}

// New creates a pipeline.
func New(objects objstore.Store, tr Transcriber, embedder embedding.Embedder, records Records) *Pipeline {
	return &Pipeline{
		objects:  objects,
		asr:      tr,
		embedder: embedder,
		records:  records,
		now:      time.Now,
	}
}

// RecognizeResult is the outcome of a recognize-only call.
type RecognizeResult struct {
	Transcript string `json:"transcript"`
	FileName   string `json:"fileName"`
	FileSize   int    `json:"fileSize"`
}

// SaveResult is the outcome of a persisting call.
type SaveResult struct {
	RecordID        string    `json:"recordId"`
	StorageURL      string    `json:"ossUrl"`
	Transcript      string    `json:"transcript"`
	FileName        string    `json:"fileName"`
	VectorDimension int       `json:"vectorDimension"`
	SaveTime        time.Time `json:"saveTime"`
}

// Recognize transcribes audio without storing anything. On provider failure
// the result carries the sentinel text and err is the provider error.
func (p *Pipeline) Recognize(ctx context.Context, userID, fileName string, audio []byte) (*RecognizeResult, error) {
	log := trace.Logger(ctx).With("user_id", userID, "file", fileName)

	text, err := p.asr.TranscribeBuffer(ctx, audio, asr.Format(fileName))
	res := &RecognizeResult{Transcript: text, FileName: fileName, FileSize: len(audio)}
	if err != nil {
		log.Warn("recognize failed", "error", err)
		return res, err
	}

	log.Info("recognized", "bytes", len(audio), "chars", len(text))
	return res, nil
}

// Save stores audio plus a transcript the user has already confirmed. The
// record is created as completed.
func (p *Pipeline) Save(ctx context.Context, userID, fileName string, audio []byte, transcript string) (*SaveResult, error) {
	log := trace.Logger(ctx).With("user_id", userID, "file", fileName)

	url, err := p.put(ctx, userID, fileName, audio)
	if err != nil {
		return nil, err
	}

	rec, err := p.records.CreateRecord(ctx, store.RecordParams{
		UserID: userID, FileName: fileName, StorageURL: url, Status: model.RecordCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	vec, err := p.storeTranscript(ctx, rec, transcript)
	if err != nil {
		return nil, err
	}

	log.Info("saved", "record_id", rec.ID, "url", url, "dims", len(vec))
	return &SaveResult{
		RecordID:        rec.ID,
		StorageURL:      url,
		Transcript:      transcript,
		FileName:        fileName,
		VectorDimension: len(vec),
		SaveTime:        rec.UploadTime,
	}, nil
}

// Upload runs the full flow: store audio, create a processing record,
// transcribe by URL, embed, save the transcript, mark completed. A recognition
// failure marks the record failed and returns ErrTranscriptionFailed.
func (p *Pipeline) Upload(ctx context.Context, userID, fileName string, audio []byte) (*SaveResult, error) {
	log := trace.Logger(ctx).With("user_id", userID, "file", fileName)

	url, err := p.put(ctx, userID, fileName, audio)
	if err != nil {
		return nil, err
	}

	rec, err := p.records.CreateRecord(ctx, store.RecordParams{
		UserID: userID, FileName: fileName, StorageURL: url, Status: model.RecordProcessing,
	})
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	text, err := p.asr.TranscribeURL(ctx, url)
	if err != nil {
		log.Warn("transcription failed", "record_id", rec.ID, "error", err)
		if uerr := p.records.UpdateRecordStatus(ctx, rec.ID, model.RecordFailed); uerr != nil {
			log.Error("mark record failed", "record_id", rec.ID, "error", uerr)
		}
		res := &SaveResult{RecordID: rec.ID, StorageURL: url, Transcript: text, FileName: fileName, SaveTime: rec.UploadTime}
		return res, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	vec, err := p.storeTranscript(ctx, rec, text)
	if err != nil {
		return nil, err
	}

	if err := p.records.UpdateRecordStatus(ctx, rec.ID, model.RecordCompleted); err != nil {
		return nil, fmt.Errorf("complete record: %w", err)
	}

	log.Info("uploaded", "record_id", rec.ID, "url", url, "chars", len(text))
	return &SaveResult{
		RecordID:        rec.ID,
		StorageURL:      url,
		Transcript:      text,
		FileName:        fileName,
		VectorDimension: len(vec),
		SaveTime:        rec.UploadTime,
	}, nil
}

func (p *Pipeline) put(ctx context.Context, userID, fileName string, audio []byte) (string, error) {
	key := objstore.ObjectKey(userID, fileName, p.now())
	url, err := p.objects.Put(ctx, key, bytes.NewReader(audio), int64(len(audio)))
	if err != nil {
		return "", fmt.Errorf("store audio: %w", err)
	}
	return url, nil
}

func (p *Pipeline) storeTranscript(ctx context.Context, rec *model.VoiceRecord, text string) (embedding.Vector, error) {
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed transcript: %w", err)
	}
	if _, err := p.records.AddTranscript(ctx, store.TranscriptParams{
		RecordID: rec.ID, UserID: rec.UserID, Text: text, Embedding: vec,
	}); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	return vec, nil
}
