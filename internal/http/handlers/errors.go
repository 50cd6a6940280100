package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/service"
)

// serviceError maps a service error to the huma error returned to clients.
// Unrecognised errors are logged and reported as 500 without details.
func serviceError(op string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidAnalysisRequest):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrAnalysisNotFound),
		errors.Is(err, service.ErrReportNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrAnalysisNotReady):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrAuditorParse),
		errors.Is(err, service.ErrSchemaAuditParse),
		errors.Is(err, llm.ErrParse):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, service.ErrAuditorFailed),
		errors.Is(err, service.ErrSchemaAuditFailed):
		return huma.Error502BadGateway(err.Error())
	case errors.Is(err, service.ErrReportsUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("request timed out")
	}

	slog.Error(op+" failed", "error", err)
	return huma.Error500InternalServerError("failed to " + op)
}
