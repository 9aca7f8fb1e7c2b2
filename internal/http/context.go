package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/facility-reservations/internal/logging"
)

// CallerTokenHeader carries the opaque employee id used as the caller token.
const CallerTokenHeader = "X-Employee-ID"

// ContextWithLogger returns a derived context that carries the request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request logger if one was attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// callerToken returns the trimmed caller token. An absent header yields "".
func callerToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(CallerTokenHeader))
}
