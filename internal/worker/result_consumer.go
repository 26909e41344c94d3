package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"tubethought/internal/middleware"
	"tubethought/internal/text"
)

// ResultConsumer turns finished transcriptions into indexed, queryable
// corpora: chunk, embed, store, then flip the ready flag. The ready flag
// is set only after every chunk is in the index, so a crash mid-way
// leaves the video unready and the next ingestion run starts clean.
type ResultConsumer struct {
	store    VectorStore
	embedder Embedder
	marker   CorpusMarker
	updater  StatusUpdater
}

func NewResultConsumer(s VectorStore, e Embedder, m CorpusMarker, u StatusUpdater) *ResultConsumer {
	return &ResultConsumer{
		store:    s,
		embedder: e,
		marker:   m,
		updater:  u,
	}
}

func (h *ResultConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestResultPayload
	err := json.Unmarshal(m.Body, &payload)

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	ctx := context.Background()
	ctx = middleware.WithCorrelationID(ctx, correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid message format", "error", err)
		return nil // Don't retry invalid messages
	}

	if payload.VideoID == "" {
		slog.ErrorContext(ctx, "missing video id, dropping message")
		return nil
	}

	if payload.Status == "failed" {
		slog.ErrorContext(ctx, "transcription failed", "video_id", payload.VideoID, "error", payload.Error)
		if err := h.updater.UpdateStatus(ctx, payload.VideoID, "failed"); err != nil {
			slog.WarnContext(ctx, "failed to update video status", "error", err)
		}
		return nil
	}

	slog.InfoContext(ctx, "received transcript", "video_id", payload.VideoID, "transcript_len", len(payload.Transcript))

	// Delete leftovers from a previous partial run so re-ingestion
	// never duplicates chunks.
	if err := h.store.DeleteChunks(ctx, payload.VideoID); err != nil {
		slog.ErrorContext(ctx, "failed to delete old chunks", "error", err)
		return err
	}

	chunks := text.ChunkTranscript(payload.Transcript, text.DefaultChunkSize, text.DefaultChunkOverlap)
	for i, content := range chunks {
		vector, err := h.embedder.Embed(ctx, content)
		if err != nil {
			slog.ErrorContext(ctx, "failed to embed chunk", "video_id", payload.VideoID, "chunk_index", i, "error", err)
			return err // Durable: NSQ redelivers and the run restarts
		}

		chunk := Chunk{
			VideoID:    payload.VideoID,
			Content:    content,
			Vector:     vector,
			ChunkIndex: i,
			Language:   payload.Language,
		}
		if err := h.store.StoreChunk(ctx, chunk); err != nil {
			slog.ErrorContext(ctx, "failed to store chunk", "video_id", payload.VideoID, "chunk_index", i, "error", err)
			return err
		}
	}

	// An empty transcript still completes: the video becomes queryable
	// and downstream flows handle the no-content case.
	if err := h.marker.MarkReady(ctx, payload.VideoID); err != nil {
		slog.ErrorContext(ctx, "failed to mark corpus ready", "video_id", payload.VideoID, "error", err)
		return err
	}

	if err := h.updater.UpdateStatus(ctx, payload.VideoID, "completed"); err != nil {
		slog.WarnContext(ctx, "failed to update video status", "error", err)
	}

	slog.InfoContext(ctx, "video indexed", "video_id", payload.VideoID, "chunks", len(chunks))
	return nil
}
