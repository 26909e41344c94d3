package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"tubethought/internal/config"
	"tubethought/internal/middleware"
)

// TaskConsumer is the in-process transcription worker: download the
// audio, run speech-to-text, publish the transcript as an ingest
// result. Deployments with an external transcription fleet leave it
// disabled and feed the result topic themselves.
type TaskConsumer struct {
	fetcher     AudioFetcher
	transcriber Transcriber
	publisher   TaskPublisher
	timeout     time.Duration
}

func NewTaskConsumer(f AudioFetcher, t Transcriber, p TaskPublisher, timeout time.Duration) *TaskConsumer {
	return &TaskConsumer{
		fetcher:     f,
		transcriber: t,
		publisher:   p,
		timeout:     timeout,
	}
}

func (h *TaskConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	err := json.Unmarshal(m.Body, &payload)

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	ctx := context.Background()
	ctx = middleware.WithCorrelationID(ctx, correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid message format", "error", err)
		return nil
	}
	if payload.VideoID == "" || payload.URL == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "video_id", payload.VideoID)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	slog.InfoContext(ctx, "transcribing video", "video_id", payload.VideoID, "duration", payload.Duration)

	transcript, err := h.transcribe(ctx, payload)
	result := IngestResultPayload{
		VideoID:       payload.VideoID,
		CorrelationID: correlationID,
	}
	if err != nil {
		slog.ErrorContext(ctx, "transcription failed", "video_id", payload.VideoID, "error", err)
		result.Status = "failed"
		result.Error = err.Error()
	} else {
		result.Status = "success"
		result.Transcript = transcript
	}

	body, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal result", "error", err)
		return nil
	}
	if err := h.publisher.Publish(config.TopicIngestResult, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish result", "error", err)
		return err // Durable: redeliver the task rather than lose it
	}
	return nil
}

func (h *TaskConsumer) transcribe(ctx context.Context, payload IngestTaskPayload) (string, error) {
	audioPath, err := h.fetcher.FetchAudio(ctx, payload.URL, payload.Duration)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			slog.WarnContext(ctx, "failed to remove audio file", "path", audioPath, "error", err)
		}
	}()

	return h.transcriber.Transcribe(ctx, audioPath)
}
