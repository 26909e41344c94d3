package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tubethought/internal/composer"
	"tubethought/internal/engine"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Query(ctx context.Context, videoID, query string, opts engine.QueryOptions) (string, error) {
	args := m.Called(ctx, videoID, query, opts)
	return args.String(0), args.Error(1)
}

func (m *MockEngine) QueryStream(ctx context.Context, videoID, query string, opts engine.QueryOptions) (<-chan composer.Chunk, error) {
	args := m.Called(ctx, videoID, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan composer.Chunk), args.Error(1)
}

func (m *MockEngine) Summarize(ctx context.Context, videoID, length string) (string, error) {
	args := m.Called(ctx, videoID, length)
	return args.String(0), args.Error(1)
}

func request(t *testing.T, h *Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	assert.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /videos/{id}/query", h.Query)
	mux.HandleFunc("POST /videos/{id}/summary", h.Summary)

	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestQuery_Batch(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	mockEngine.On("Query", mock.Anything, "vid12345678", "what is this about?",
		engine.QueryOptions{SearchMethod: "hybrid"}).
		Return("it is about caching", nil)

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{
		"query":         "what is this about?",
		"search_method": "hybrid",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "it is about caching")
}

func TestQuery_MissingQuery(t *testing.T) {
	handler := NewHandler(new(MockEngine))

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestQuery_NotReadyMapsTo409(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	mockEngine.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: vid", engine.ErrNotReady))

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{
		"query": "too early",
	})

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "NOT_READY")
}

func TestQuery_GenerationFailureMapsTo502(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	mockEngine.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: backend down", engine.ErrGeneration))

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{
		"query": "q",
	})

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "GENERATION_FAILED")
}

func TestQuery_TranslationFailureMapsTo502(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	mockEngine.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: backend down", engine.ErrTranslation))

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{
		"query": "¿qué?",
	})

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "TRANSLATION_FAILED")
}

func TestQuery_StreamEmitsTokenAndDoneEvents(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	ch := make(chan composer.Chunk, 3)
	ch <- composer.Chunk{Token: "The"}
	ch <- composer.Chunk{Token: " answer"}
	ch <- composer.Chunk{Done: true, Response: "The answer"}
	close(ch)

	mockEngine.On("QueryStream", mock.Anything, "vid12345678", "q", mock.Anything).
		Return((<-chan composer.Chunk)(ch), nil)

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{
		"query":  "q",
		"stream": true,
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	assert.Contains(t, body, "event: token")
	assert.Contains(t, body, `{"token":"The"}`)
	assert.Contains(t, body, `{"token":" answer"}`)
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `{"response":"The answer"}`)

	// Tokens arrive before the final event.
	assert.Less(t, bytes.Index(rr.Body.Bytes(), []byte("event: token")), bytes.Index(rr.Body.Bytes(), []byte("event: done")))
}

func TestQuery_StreamErrorEvent(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	ch := make(chan composer.Chunk, 2)
	ch <- composer.Chunk{Token: "partial"}
	ch <- composer.Chunk{Err: fmt.Errorf("%w: reset", engine.ErrGeneration)}
	close(ch)

	mockEngine.On("QueryStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return((<-chan composer.Chunk)(ch), nil)

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{
		"query":  "q",
		"stream": true,
	})

	assert.Contains(t, rr.Body.String(), "event: error")
}

func TestQuery_StreamNotReadyFailsBeforeSSE(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	mockEngine.On("QueryStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: vid", engine.ErrNotReady))

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/query", map[string]interface{}{
		"query":  "q",
		"stream": true,
	})

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestSummary(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	mockEngine.On("Summarize", mock.Anything, "vid12345678", "short").
		Return("a short summary", nil)

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/summary", map[string]string{
		"length": "short",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "a short summary")
	assert.Contains(t, rr.Body.String(), `"empty_transcript":false`)
}

func TestSummary_EmptyTranscript(t *testing.T) {
	mockEngine := new(MockEngine)
	handler := NewHandler(mockEngine)

	mockEngine.On("Summarize", mock.Anything, "vid12345678", "medium").
		Return("", nil)

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/summary", map[string]string{})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"empty_transcript":true`)
}

func TestSummary_InvalidLength(t *testing.T) {
	handler := NewHandler(new(MockEngine))

	rr := request(t, handler, http.MethodPost, "/videos/vid12345678/summary", map[string]string{
		"length": "enormous",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
