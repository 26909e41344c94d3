package config

const (
	// TopicIngestTask is the NSQ topic for video download/transcription tasks.
	TopicIngestTask = "ingest.task"

	// TopicIngestResult is the NSQ topic for transcription results
	// (success carries the transcript text, failure an error).
	TopicIngestResult = "ingest.result"
)
