package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tubethought/internal/retrieval"
)

// ErrGeneration marks a failed or unreachable generation backend. The
// request fails and nothing is cached.
var ErrGeneration = errors.New("generation failed")

// Chunk is one element of a streamed answer. Every element before the
// last carries a non-empty Token; the final element has Done set, an
// empty Token and the full Response. Callers that post-process the
// answer (e.g. translate it back) replace Response before forwarding.
type Chunk struct {
	Token    string
	Done     bool
	Response string
	Err      error
}

type Options struct {
	Model     string
	MaxTokens int
	VideoID   string
}

const (
	DefaultStreamMaxTokens = 300
	DefaultBatchMaxTokens  = 400
)

// TokenStream is a single-pass token sequence from the generation
// backend. Recv returns io.EOF after the last token.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// ChatClient is the generation collaborator.
type ChatClient interface {
	StreamChat(ctx context.Context, model string, maxTokens int, system, user string) (TokenStream, error)
	Chat(ctx context.Context, model string, maxTokens int, system, user string) (string, error)
}

type Composer struct {
	client       ChatClient
	defaultModel string
	summaryModel string
}

func New(client ChatClient, defaultModel, summaryModel string) *Composer {
	return &Composer{client: client, defaultModel: defaultModel, summaryModel: summaryModel}
}

// Stream drives a streaming generation call over the retrieved context.
// The returned channel is single-consumer, ordered, and closed after the
// final chunk. Cancelling ctx stops the stream; no final chunk is emitted
// in that case.
func (c *Composer) Stream(ctx context.Context, query string, fragments []retrieval.Fragment, opts Options) (<-chan Chunk, error) {
	model, maxTokens := c.resolve(opts, DefaultStreamMaxTokens)

	stream, err := c.client.StreamChat(ctx, model, maxTokens, answerSystemPrompt, userPrompt(query, fragments))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		var full strings.Builder
		for {
			token, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				select {
				case out <- Chunk{Done: true, Response: full.String()}:
				case <-ctx.Done():
				}
				return
			}
			if err != nil {
				select {
				case out <- Chunk{Err: fmt.Errorf("%w: %v", ErrGeneration, err)}:
				case <-ctx.Done():
				}
				return
			}
			if token == "" {
				continue
			}
			full.WriteString(token)
			select {
			case out <- Chunk{Token: token}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Generate is the single-shot equivalent of Stream.
func (c *Composer) Generate(ctx context.Context, query string, fragments []retrieval.Fragment, opts Options) (string, error) {
	model, maxTokens := c.resolve(opts, DefaultBatchMaxTokens)

	response, err := c.client.Chat(ctx, model, maxTokens, answerSystemPrompt, userPrompt(query, fragments))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return response, nil
}

// Summarize produces a transcript summary of the requested length
// (short, medium, detailed).
func (c *Composer) Summarize(ctx context.Context, transcript, length string, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.summaryModel
	}

	budget, ok := summaryBudgets[length]
	if !ok {
		budget = summaryBudgets["medium"]
	}

	prompt := fmt.Sprintf("Summarize the following video transcript in a %s. Cover only what was actually said.\n\nTranscript:\n%s", budget.style, transcript)
	response, err := c.client.Chat(ctx, model, budget.maxTokens, summarySystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return response, nil
}

func (c *Composer) resolve(opts Options, defaultMaxTokens int) (string, int) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return model, maxTokens
}

const answerSystemPrompt = "You are an assistant answering questions about a video using only its transcript. " +
	"Answer from the provided excerpts; if they do not contain the answer, say so plainly."

const summarySystemPrompt = "You summarize video transcripts faithfully, without adding information."

var summaryBudgets = map[string]struct {
	style     string
	maxTokens int
}{
	"short":    {"couple of sentences", 150},
	"medium":   {"concise paragraph", 300},
	"detailed": {"detailed multi-paragraph summary", 600},
}

func userPrompt(query string, fragments []retrieval.Fragment) string {
	var b strings.Builder
	b.WriteString("Transcript excerpts:\n")
	for i, f := range fragments {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, f.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
