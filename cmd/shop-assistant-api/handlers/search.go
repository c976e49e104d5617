// Package handlers provides HTTP handlers for the shop assistant API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/retrieval"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Searcher runs the retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, query string) (*retrieval.Result, error)
}

// Answerer answers a product question.
type Answerer interface {
	Answer(ctx context.Context, query string) (*assistant.Answer, error)
}

// ShopHandler serves product search and chat.
type ShopHandler struct {
	logger   *observability.Logger
	searcher Searcher
	answerer Answerer
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(logger *observability.Logger, searcher Searcher, answerer Answerer) *ShopHandler {
	return &ShopHandler{
		logger:   logger,
		searcher: searcher,
		answerer: answerer,
	}
}

// QueryRequestDTO is the body of search and chat requests.
type QueryRequestDTO struct {
	Query string `json:"query"`
}

// SearchResponseDTO is the response of POST /search.
type SearchResponseDTO struct {
	Outcome    string                     `json:"outcome"`
	Context    string                     `json:"context"`
	Filters    catalog.FilterSpec         `json:"filters"`
	Candidates []catalog.ProductCandidate `json:"candidates"`
	LatencyMs  int64                      `json:"latencyMs"`
}

// ChatResponseDTO is the response of POST /chat.
type ChatResponseDTO struct {
	Answer    string `json:"answer"`
	Outcome   string `json:"outcome"`
	LatencyMs int64  `json:"latencyMs"`
}

// Search handles POST /search.
func (h *ShopHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := h.readQuery(w, r)
	if !ok {
		return
	}

	result, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Search failed")
		h.writeError(w, http.StatusBadGateway, "search failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, SearchResponseDTO{
		Outcome:    string(result.Outcome),
		Context:    result.Context,
		Filters:    result.Filters,
		Candidates: result.Candidates,
		LatencyMs:  result.Latency.Milliseconds(),
	})
}

// Chat handles POST /chat.
func (h *ShopHandler) Chat(w http.ResponseWriter, r *http.Request) {
	query, ok := h.readQuery(w, r)
	if !ok {
		return
	}

	answer, err := h.answerer.Answer(r.Context(), query)
	if err != nil {
		if errors.Is(err, app.ErrAnswerModelUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, "answer model unavailable", "")
			return
		}
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Chat failed")
		h.writeError(w, http.StatusBadGateway, "chat failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, ChatResponseDTO{
		Answer:    answer.Text,
		Outcome:   string(answer.Outcome),
		LatencyMs: answer.Latency.Milliseconds(),
	})
}

func (h *ShopHandler) readQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req QueryRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return "", false
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required", "")
		return "", false
	}
	return query, true
}

func (h *ShopHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ShopHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}
