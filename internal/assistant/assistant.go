package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/llm"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/retrieval"
)

// ContextSearcher produces the product context for a query.
type ContextSearcher interface {
	Search(ctx context.Context, query string) (*retrieval.Result, error)
}

// Answer is the assistant's reply to one user turn.
type Answer struct {
	Text       string             `json:"answer"`
	Outcome    retrieval.Outcome  `json:"outcome"`
	Context    string             `json:"context"`
	Filters    catalog.FilterSpec `json:"filters"`
	Candidates int                `json:"candidates"`
	Latency    time.Duration      `json:"-"`
}

// Assistant answers product questions from retrieved catalog context.
type Assistant struct {
	searcher  ContextSearcher
	completer llm.Completer
	logger    *observability.Logger
}

// New creates an Assistant.
func New(searcher ContextSearcher, completer llm.Completer, logger *observability.Logger) *Assistant {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Assistant{
		searcher:  searcher,
		completer: completer,
		logger:    logger,
	}
}

// Answer retrieves product context for query and asks the answer model to
// respond. When nothing was retrieved or nothing matched, the fixed message
// for that outcome is returned and the model is not called.
func (a *Assistant) Answer(ctx context.Context, query string) (*Answer, error) {
	start := time.Now()
	log := a.logger.WithContext(ctx).WithOperation("answer")

	result, err := a.searcher.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search product context: %w", err)
	}

	answer := &Answer{
		Outcome:    result.Outcome,
		Context:    result.Context,
		Filters:    result.Filters,
		Candidates: len(result.Candidates),
	}

	if result.Outcome != retrieval.OutcomeOK {
		answer.Text = result.Context
		answer.Latency = time.Since(start)
		log.Info().
			Str("outcome", string(answer.Outcome)).
			Dur("latency", answer.Latency).
			Msg("Answered without model call")
		return answer, nil
	}

	text, err := a.completer.Complete(ctx, SystemMessage, BuildAnswerPrompt(strings.TrimSpace(query), result.Context))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answer.Text = text
	answer.Latency = time.Since(start)

	log.Info().
		Str("outcome", string(answer.Outcome)).
		Int("candidates", answer.Candidates).
		Int("answer_length", len(text)).
		Dur("latency", answer.Latency).
		Msg("Answer generated")

	return answer, nil
}
