package worker

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) StoreChunk(ctx context.Context, chunk Chunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

func (m *MockVectorStore) DeleteChunks(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockCorpusMarker struct {
	mock.Mock
}

func (m *MockCorpusMarker) MarkReady(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

type MockStatusUpdater struct {
	mock.Mock
}

func (m *MockStatusUpdater) UpdateStatus(ctx context.Context, videoID, status string) error {
	args := m.Called(ctx, videoID, status)
	return args.Error(0)
}

type MockAudioFetcher struct {
	mock.Mock
}

func (m *MockAudioFetcher) FetchAudio(ctx context.Context, url, duration string) (string, error) {
	args := m.Called(ctx, url, duration)
	return args.String(0), args.Error(1)
}

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	args := m.Called(ctx, audioPath)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}
