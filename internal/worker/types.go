package worker

import (
	"context"
)

// Chunk is one transcript fragment on its way into the vector index.
type Chunk struct {
	VideoID    string
	Content    string
	Vector     []float32
	ChunkIndex int
	Language   string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) error
	DeleteChunks(ctx context.Context, videoID string) error
}

// CorpusMarker flips the ready flag once every chunk of a video is
// indexed. Implementations must be idempotent.
type CorpusMarker interface {
	MarkReady(ctx context.Context, videoID string) error
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, videoID, status string) error
}

// AudioFetcher downloads a video's audio track and returns the local
// file path.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, url, duration string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}
