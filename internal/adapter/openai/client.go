package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"tubethought/internal/composer"
)

// Client wraps the OpenAI API behind the small interfaces the rest of
// the application consumes (chat, translation, transcription).
type Client struct {
	api *goopenai.Client
}

func NewClient(apiKey string) *Client {
	return &Client{api: goopenai.NewClient(apiKey)}
}

func (c *Client) StreamChat(ctx context.Context, model string, maxTokens int, system, user string) (composer.TokenStream, error) {
	req := goopenai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Stream:    true,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create chat stream: %w", err)
	}
	return &tokenStream{stream: stream}, nil
}

func (c *Client) Chat(ctx context.Context, model string, maxTokens int, system, user string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type tokenStream struct {
	stream *goopenai.ChatCompletionStream
}

func (s *tokenStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		// io.EOF passes through as the end-of-stream sentinel.
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *tokenStream) Close() error {
	return s.stream.Close()
}

// Translate converts text between ISO 639-1 codes via a chat completion.
// The model used is fixed per translator instance.
type Translator struct {
	client *Client
	model  string
}

func NewTranslator(client *Client, model string) *Translator {
	return &Translator{client: client, model: model}
}

func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == target || strings.TrimSpace(text) == "" {
		return text, nil
	}

	slog.DebugContext(ctx, "translating text", "source", source, "target", target, "length", len(text))

	system := fmt.Sprintf("You are a translator. Translate the user's text from %s to %s. Return only the translation, with no commentary.", source, target)
	translated, err := t.client.Chat(ctx, t.model, 0, system, text)
	if err != nil {
		return "", fmt.Errorf("translate %s to %s: %w", source, target, err)
	}
	return strings.TrimSpace(translated), nil
}

// Transcriber turns an audio file into transcript text with Whisper.
type Transcriber struct {
	api   *goopenai.Client
	model string
}

func NewTranscriber(client *Client, model string) *Transcriber {
	return &Transcriber{api: client.api, model: model}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := t.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return resp.Text, nil
}
