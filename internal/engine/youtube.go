package engine

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
)

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?.*v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

var bareVideoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID canonicalizes any YouTube URL form to the 11-character
// video ID, so every URL variant of the same video shares one corpus and
// one cache. Unrecognized references hash to a stable synthetic ID.
func ExtractVideoID(url string) string {
	for _, re := range youtubeIDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	if bareVideoID.MatchString(url) {
		return url
	}
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
