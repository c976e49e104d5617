package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// answerFunc answers one chat turn.
type answerFunc func(ctx context.Context, query string) (*assistant.Answer, error)

var exitWords = map[string]bool{
	"exit":  true,
	"quit":  true,
	"thoát": true,
	"bye":   true,
}

// runChat reads one question per line from in until EOF or an exit word.
// Each turn runs under its own trace ID. A failed turn is reported and the
// loop continues, except when no answer model is configured.
func runChat(ctx context.Context, in io.Reader, ui *UI, answer answerFunc, logger *observability.Logger) error {
	ui.Assistant(assistant.Greeting)

	scanner := bufio.NewScanner(in)
	for {
		ui.Prompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			break
		}

		turnCtx, traceID := observability.ContextWithNewTraceID(ctx)
		reply, err := answer(turnCtx, line)
		if err != nil {
			if errors.Is(err, app.ErrAnswerModelUnavailable) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithContext(turnCtx).Error().Err(err).Msg("Chat turn failed")
			ui.Warning("Xin lỗi, đã có lỗi xảy ra (trace %s). Vui lòng thử lại.", traceID)
			continue
		}
		ui.Assistant(reply.Text)
	}

	return scanner.Err()
}
