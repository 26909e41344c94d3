package composer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tubethought/internal/retrieval"
)

// fakeStream replays a fixed token script, then failErr or io.EOF.
type fakeStream struct {
	tokens  []string
	failErr error
	pos     int
	closed  bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos < len(s.tokens) {
		token := s.tokens[s.pos]
		s.pos++
		return token, nil
	}
	if s.failErr != nil {
		return "", s.failErr
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeClient struct {
	stream    *fakeStream
	streamErr error

	chatResponse string
	chatErr      error

	lastModel     string
	lastMaxTokens int
	lastUser      string
}

func (c *fakeClient) StreamChat(ctx context.Context, model string, maxTokens int, system, user string) (TokenStream, error) {
	c.lastModel = model
	c.lastMaxTokens = maxTokens
	c.lastUser = user
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	return c.stream, nil
}

func (c *fakeClient) Chat(ctx context.Context, model string, maxTokens int, system, user string) (string, error) {
	c.lastModel = model
	c.lastMaxTokens = maxTokens
	c.lastUser = user
	return c.chatResponse, c.chatErr
}

func collect(t *testing.T, ch <-chan Chunk) []Chunk {
	t.Helper()
	var chunks []Chunk
	timeout := time.After(time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestComposer_Stream_OrderAndCompletion(t *testing.T) {
	stream := &fakeStream{tokens: []string{"The", " answer", " is", " 42."}}
	client := &fakeClient{stream: stream}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	ch, err := c.Stream(context.Background(), "what is the answer?", nil, Options{})
	assert.NoError(t, err)

	chunks := collect(t, ch)
	assert.Len(t, chunks, 5)

	// 1. Every chunk before the last carries exactly one token.
	for i := 0; i < 4; i++ {
		assert.Equal(t, stream.tokens[i], chunks[i].Token)
		assert.False(t, chunks[i].Done)
		assert.Empty(t, chunks[i].Response)
	}

	// 2. The final chunk carries the full response and no token.
	last := chunks[4]
	assert.True(t, last.Done)
	assert.Empty(t, last.Token)
	assert.Equal(t, "The answer is 42.", last.Response)

	// 3. The backend stream is released.
	assert.True(t, stream.closed)
}

func TestComposer_Stream_EmptyDeltasSkipped(t *testing.T) {
	client := &fakeClient{stream: &fakeStream{tokens: []string{"", "hi", ""}}}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	ch, err := c.Stream(context.Background(), "q", nil, Options{})
	assert.NoError(t, err)

	chunks := collect(t, ch)
	assert.Len(t, chunks, 2)
	assert.Equal(t, "hi", chunks[0].Token)
	assert.Equal(t, "hi", chunks[1].Response)
}

func TestComposer_Stream_DefaultsApplied(t *testing.T) {
	client := &fakeClient{stream: &fakeStream{}}
	c := New(client, "gpt-3.5-turbo", "gpt-4o-mini")

	ch, err := c.Stream(context.Background(), "q", []retrieval.Fragment{{Content: "excerpt"}}, Options{})
	assert.NoError(t, err)
	collect(t, ch)

	assert.Equal(t, "gpt-3.5-turbo", client.lastModel)
	assert.Equal(t, DefaultStreamMaxTokens, client.lastMaxTokens)
	assert.Contains(t, client.lastUser, "excerpt")
	assert.Contains(t, client.lastUser, "Question: q")
}

func TestComposer_Stream_SetupFailure(t *testing.T) {
	client := &fakeClient{streamErr: errors.New("connection refused")}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	_, err := c.Stream(context.Background(), "q", nil, Options{})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestComposer_Stream_MidStreamFailure(t *testing.T) {
	client := &fakeClient{stream: &fakeStream{tokens: []string{"partial"}, failErr: errors.New("backend reset")}}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	ch, err := c.Stream(context.Background(), "q", nil, Options{})
	assert.NoError(t, err)

	chunks := collect(t, ch)
	assert.Len(t, chunks, 2)
	assert.Equal(t, "partial", chunks[0].Token)
	assert.ErrorIs(t, chunks[1].Err, ErrGeneration)
	assert.False(t, chunks[1].Done)
}

func TestComposer_Stream_Cancellation(t *testing.T) {
	client := &fakeClient{stream: &fakeStream{tokens: []string{"a", "b", "c"}}}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Stream(ctx, "q", nil, Options{})
	assert.NoError(t, err)

	first := <-ch
	assert.Equal(t, "a", first.Token)
	cancel()

	// The channel closes without a Done chunk once the consumer is gone.
	timeout := time.After(time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			assert.False(t, chunk.Done)
		case <-timeout:
			t.Fatal("stream did not stop after cancellation")
		}
	}
}

func TestComposer_Generate(t *testing.T) {
	client := &fakeClient{chatResponse: "a complete answer"}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	response, err := c.Generate(context.Background(), "q", fragments("one", "two"), Options{})
	assert.NoError(t, err)
	assert.Equal(t, "a complete answer", response)
	assert.Equal(t, DefaultBatchMaxTokens, client.lastMaxTokens)
}

func TestComposer_Generate_Failure(t *testing.T) {
	client := &fakeClient{chatErr: errors.New("quota exceeded")}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	_, err := c.Generate(context.Background(), "q", nil, Options{})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestComposer_Summarize_Budgets(t *testing.T) {
	client := &fakeClient{chatResponse: "summary"}
	c := New(client, "gpt-3.5-turbo", "gpt-4o-mini")

	for length, wantTokens := range map[string]int{"short": 150, "medium": 300, "detailed": 600} {
		_, err := c.Summarize(context.Background(), "transcript text", length, Options{})
		assert.NoError(t, err)
		assert.Equal(t, wantTokens, client.lastMaxTokens, length)
		assert.Equal(t, "gpt-4o-mini", client.lastModel)
	}
}

func TestComposer_Summarize_UnknownLengthFallsBackToMedium(t *testing.T) {
	client := &fakeClient{chatResponse: "summary"}
	c := New(client, "gpt-3.5-turbo", "gpt-3.5-turbo")

	_, err := c.Summarize(context.Background(), "transcript text", "gigantic", Options{})
	assert.NoError(t, err)
	assert.Equal(t, 300, client.lastMaxTokens)
}

func fragments(contents ...string) []retrieval.Fragment {
	out := make([]retrieval.Fragment, len(contents))
	for i, c := range contents {
		out[i] = retrieval.Fragment{Content: c}
	}
	return out
}
