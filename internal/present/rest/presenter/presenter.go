package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/escrow-ledger/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", err.Error()), slog.String("module", "presenter"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "presenter"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "internal error", slog.String("error", err.Error()), slog.String("module", "presenter"))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// Error renders a usecase error. Rejected transitions carry their code.
func Error(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return NotFound(c, err.Error())
	}

	var le domain.LedgerError
	if !errors.As(err, &le) {
		return InternalError(c, err)
	}

	return c.JSON(Status(le.Code), errorResponse{Error: le.Error(), Code: string(le.Code)})
}

func Status(code domain.Code) int {
	switch code {
	case domain.CodeInvalidAmount,
		domain.CodeInvalidDeadline,
		domain.CodeInvalidCommand,
		domain.CodeSelfContribution:
		return http.StatusBadRequest
	case domain.CodeInvalidSignature:
		return http.StatusUnauthorized
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeAlreadyExists,
		domain.CodeDuplicateCommand:
		return http.StatusConflict
	case domain.CodeCampaignEnded,
		domain.CodeCampaignNotEnded,
		domain.CodeGoalNotReached,
		domain.CodeAlreadyWithdrawn,
		domain.CodeExitNotAllowed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
