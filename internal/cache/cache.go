package cache

import (
	"context"
	"fmt"
	"time"
)

// ResponseTTL bounds how long a memoized answer is trusted. A day is long
// enough to absorb repeated questions within a session and short enough
// that upstream model or index changes are eventually reflected.
const ResponseTTL = 24 * time.Hour

// SummaryKey builds the request key for a cached summary of the given
// length (short, medium, detailed).
func SummaryKey(length string) string {
	return fmt.Sprintf("summarize:%s", length)
}

type Stats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Store memoizes computed responses per (video, request) and tracks which
// videos have finished ingestion. A present, non-expired entry is
// interchangeable with recomputing the request; the store never invents
// information on its own.
type Store interface {
	// HasReady reports whether ingestion for the video has completed.
	HasReady(ctx context.Context, videoID string) (bool, error)

	// MarkReady flips the video's ready flag. Idempotent; the flag only
	// ever transitions false to true.
	MarkReady(ctx context.Context, videoID string) error

	// Get returns the cached response for the request key, if present and
	// younger than ResponseTTL. Expired entries behave as misses; they are
	// reaped lazily, never returned.
	Get(ctx context.Context, videoID, requestKey string) (string, bool, error)

	// Put overwrites the entry for the request key, stamping the current
	// time.
	Put(ctx context.Context, videoID, requestKey, response string) error

	// CountReady returns the number of fully ingested videos.
	CountReady(ctx context.Context) (int, error)

	Stats() Stats
}
