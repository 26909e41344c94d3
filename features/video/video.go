package video

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"tubethought/internal/config"
	"tubethought/internal/middleware"
	"tubethought/internal/worker"
)

type Video struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Duration string `json:"duration"`
	Status   string `json:"status"` // processing, completed, failed
}

const DefaultDuration = "full_video"

var validDurations = map[string]bool{
	"full_video":       true,
	"first_5_minutes":  true,
	"first_10_minutes": true,
	"first_30_minutes": true,
	"first_60_minutes": true,
}

func ValidDuration(d string) bool {
	return validDurations[d]
}

type Repository interface {
	Upsert(ctx context.Context, v *Video) error
	Get(ctx context.Context, id string) (*Video, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Count(ctx context.Context) (int, error)
}

// CorpusRegistrar creates the corpus row (unready) so the ready flag has
// somewhere to land when ingestion completes.
type CorpusRegistrar interface {
	RegisterCorpus(ctx context.Context, videoID string) error
}

type ReadyChecker interface {
	HasReady(ctx context.Context, videoID string) (bool, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Engine is the slice of the query engine the video feature drives.
type Engine interface {
	Process(ctx context.Context, url, duration string) (string, bool, error)
}

type Service struct {
	repo   Repository
	ready  ReadyChecker
	engine Engine
}

func NewService(repo Repository, ready ReadyChecker, engine Engine) *Service {
	return &Service{repo: repo, ready: ready, engine: engine}
}

// Submit registers a video for processing. Resubmitting a ready video is
// a no-op returning the existing corpus.
func (s *Service) Submit(ctx context.Context, url, duration string) (*Video, bool, error) {
	if duration == "" {
		duration = DefaultDuration
	}
	if !ValidDuration(duration) {
		return nil, false, fmt.Errorf("invalid duration %q", duration)
	}

	videoID, ready, err := s.engine.Process(ctx, url, duration)
	if err != nil {
		return nil, false, err
	}

	v, err := s.repo.Get(ctx, videoID)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		v = &Video{ID: videoID, URL: url, Duration: duration, Status: "processing"}
	}
	return v, ready, nil
}

// Get returns a video's record plus its corpus readiness.
func (s *Service) Get(ctx context.Context, id string) (*Video, bool, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	ready, err := s.ready.HasReady(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return v, ready, nil
}

// NSQIngestor kicks off ingestion by publishing an ingest task. It is
// idempotent per video: a video already marked processing is not
// re-published.
type NSQIngestor struct {
	repo      Repository
	registrar CorpusRegistrar
	pub       EventPublisher
}

func NewNSQIngestor(repo Repository, registrar CorpusRegistrar, pub EventPublisher) *NSQIngestor {
	return &NSQIngestor{repo: repo, registrar: registrar, pub: pub}
}

func (i *NSQIngestor) Ingest(ctx context.Context, videoID, url, duration string) error {
	existing, err := i.repo.Get(ctx, videoID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == "processing" {
		slog.InfoContext(ctx, "ingestion already in flight", "video_id", videoID)
		return nil
	}

	if err := i.registrar.RegisterCorpus(ctx, videoID); err != nil {
		return fmt.Errorf("register corpus: %w", err)
	}
	if err := i.repo.Upsert(ctx, &Video{ID: videoID, URL: url, Duration: duration, Status: "processing"}); err != nil {
		return fmt.Errorf("save video: %w", err)
	}

	payload, err := json.Marshal(worker.IngestTaskPayload{
		VideoID:       videoID,
		URL:           url,
		Duration:      duration,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}
	if err := i.pub.Publish(config.TopicIngestTask, payload); err != nil {
		return fmt.Errorf("publish ingest task: %w", err)
	}

	slog.InfoContext(ctx, "published ingest task", "video_id", videoID, "duration", duration)
	return nil
}
