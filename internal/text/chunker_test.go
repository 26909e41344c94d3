package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkTranscript_ShortTextSingleChunk(t *testing.T) {
	chunks := ChunkTranscript("hello there, this fits in one chunk.", 4000, 400)
	assert.Equal(t, []string{"hello there, this fits in one chunk."}, chunks)
}

func TestChunkTranscript_EmptyInput(t *testing.T) {
	assert.Nil(t, ChunkTranscript("", 4000, 400))
	assert.Empty(t, ChunkTranscript("   \n\t  ", 4000, 400))
}

func TestChunkTranscript_SplitsOnSentenceBoundary(t *testing.T) {
	first := strings.Repeat("a", 50) + ". "
	second := "The second sentence goes on for a while after the break."
	chunks := ChunkTranscript(first+second, 70, 0)

	assert.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 50)+".", chunks[0])
	assert.Equal(t, second, chunks[1])
}

func TestChunkTranscript_OverlapCarriesContext(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "word")
	}
	transcript := strings.Join(words, " ")

	chunks := ChunkTranscript(transcript, 500, 100)
	assert.Greater(t, len(chunks), 1)

	// Each consecutive pair shares text from the overlap window.
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-20:]
		assert.Contains(t, chunks[i-1]+chunks[i], tail)
	}

	// No chunk exceeds the size limit.
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 500)
	}
}

func TestChunkTranscript_UnbrokenRunHardSplit(t *testing.T) {
	chunks := ChunkTranscript(strings.Repeat("x", 950), 400, 0)
	assert.Len(t, chunks, 3)
	for _, c := range chunks[:2] {
		assert.Len(t, c, 400)
	}
}

func TestChunkTranscript_CoversAllContent(t *testing.T) {
	sentences := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		sentences = append(sentences, "Something happens in the video at this point.")
	}
	transcript := strings.Join(sentences, " ")

	chunks := ChunkTranscript(transcript, 1000, 100)
	assert.NotEmpty(t, chunks)

	// The last chunk must end where the transcript ends.
	assert.True(t, strings.HasSuffix(transcript, chunks[len(chunks)-1]))
}
