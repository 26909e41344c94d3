package worker

// IngestTaskPayload asks a transcription worker to produce the
// transcript for one video.
type IngestTaskPayload struct {
	VideoID  string `json:"video_id"`
	URL      string `json:"url"`
	Duration string `json:"duration"`

	CorrelationID string `json:"correlation_id"`
}

// IngestResultPayload carries a finished (or failed) transcription back
// for chunking and indexing.
type IngestResultPayload struct {
	VideoID    string `json:"video_id"`
	Transcript string `json:"transcript"`
	Language   string `json:"language,omitempty"`

	Status string `json:"status,omitempty"` // "success" or "failed"
	Error  string `json:"error,omitempty"`

	CorrelationID string `json:"correlation_id,omitempty"`
}
