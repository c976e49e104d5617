package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/shop-assistant/cmd/shop-assistant-api/handlers"
	"github.com/spherical-ai/spherical/libs/shop-assistant/cmd/shop-assistant-api/middleware"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/retrieval"
)

type stubSearcher struct {
	result *retrieval.Result
	err    error
	query  string
	trace  string
}

func (s *stubSearcher) Search(ctx context.Context, query string) (*retrieval.Result, error) {
	s.query = query
	s.trace = observability.TraceIDFromContext(ctx)
	return s.result, s.err
}

type stubAnswerer struct {
	answer *assistant.Answer
	err    error
}

func (s *stubAnswerer) Answer(context.Context, string) (*assistant.Answer, error) {
	return s.answer, s.err
}

func newTestRouter(searcher handlers.Searcher, answerer handlers.Answerer, ready func(context.Context) error) http.Handler {
	return NewRouter(observability.NewNopLogger(), RouterDeps{
		Searcher: searcher,
		Answerer: answerer,
		Ready:    ready,
	}, DefaultAppConfig())
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	h := newTestRouter(&stubSearcher{}, &stubAnswerer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady := newTestRouter(&stubSearcher{}, &stubAnswerer{}, func(context.Context) error {
		return errors.New("redis down")
	})
	rec = httptest.NewRecorder()
	notReady.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis down")
}

func TestSearchEndpoint(t *testing.T) {
	searcher := &stubSearcher{result: &retrieval.Result{
		Outcome:    retrieval.OutcomeOK,
		Context:    "📦 Tên sản phẩm: X",
		Filters:    catalog.IdentityFilter(),
		Candidates: []catalog.ProductCandidate{{Name: "X", Memory: "8GB"}},
		Latency:    42 * time.Millisecond,
	}}
	h := newTestRouter(searcher, &stubAnswerer{}, nil)

	rec := post(t, h, "/api/v1/search", `{"query":"  điện thoại đen  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.TraceHeader))

	var resp handlers.SearchResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Outcome)
	assert.Equal(t, "📦 Tên sản phẩm: X", resp.Context)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "X", resp.Candidates[0].Name)
	assert.Equal(t, int64(42), resp.LatencyMs)

	assert.Equal(t, "điện thoại đen", searcher.query)
	assert.Equal(t, rec.Header().Get(middleware.TraceHeader), searcher.trace)
}

func TestSearchEndpoint_Errors(t *testing.T) {
	h := newTestRouter(&stubSearcher{err: retrieval.ErrRetrievalFailed}, &stubAnswerer{}, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{"query":`, http.StatusBadRequest},
		{"blank query", `{"query":"   "}`, http.StatusBadRequest},
		{"retrieval failure", `{"query":"q"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/api/v1/search", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestChatEndpoint(t *testing.T) {
	h := newTestRouter(&stubSearcher{}, &stubAnswerer{answer: &assistant.Answer{
		Text:    catalog.NoMatchMessage,
		Outcome: retrieval.OutcomeNoMatch,
	}}, nil)

	rec := post(t, h, "/api/v1/chat", `{"query":"điện thoại trên 1 tỷ"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ChatResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, catalog.NoMatchMessage, resp.Answer)
	assert.Equal(t, "no_match", resp.Outcome)
}

func TestChatEndpoint_ModelUnavailable(t *testing.T) {
	h := newTestRouter(&stubSearcher{}, &stubAnswerer{err: app.ErrAnswerModelUnavailable}, nil)

	rec := post(t, h, "/api/v1/chat", `{"query":"q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(observability.NewNopLogger(), RouterDeps{
		Searcher: &stubSearcher{},
		Answerer: &stubAnswerer{},
	}, AppConfig{RequestTimeout: time.Second, AllowedOrigins: []string{"https://shop.example.vn"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://shop.example.vn")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://shop.example.vn", rec.Header().Get("Access-Control-Allow-Origin"))
}
