package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Durations bound how much of a video is downloaded before
// transcription. Anything else means the full video.
var durationSeconds = map[string]int{
	"first_5_minutes":  5 * 60,
	"first_10_minutes": 10 * 60,
	"first_30_minutes": 30 * 60,
	"first_60_minutes": 60 * 60,
}

// Fetcher downloads a video's audio track with yt-dlp.
type Fetcher struct {
	mediaDir    string
	cookiesPath string
}

func NewFetcher(mediaDir, cookiesPath string) *Fetcher {
	return &Fetcher{mediaDir: mediaDir, cookiesPath: cookiesPath}
}

func (f *Fetcher) FetchAudio(ctx context.Context, url, duration string) (string, error) {
	if err := os.MkdirAll(f.mediaDir, 0o750); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	outPath := filepath.Join(f.mediaDir, uuid.New().String()+".mp3")

	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "5",
		"--no-playlist",
		"-o", outPath,
	}
	if seconds, ok := durationSeconds[duration]; ok {
		args = append(args, "--download-sections", fmt.Sprintf("*0-%d", seconds))
	}
	if f.cookiesPath != "" {
		args = append(args, "--cookies", f.cookiesPath)
	}
	args = append(args, url)

	slog.InfoContext(ctx, "downloading audio", "url", url, "duration", duration)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %v: %s", err, truncate(output, 500))
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("yt-dlp produced no output file: %w", err)
	}
	return outPath, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
