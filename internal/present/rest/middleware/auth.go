package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// IdentifyIdentity attaches the requester address to the request context when
// a valid bearer token is present. Requests without one pass through
// anonymously; handlers that need an identity reject them.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyIdentity")
		defer span.End()

		if token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
			result, err := s.auth.AuthJwt(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "bearer token rejected"))
			} else {
				ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, result.Address)
				span.SetAttributes(attribute.String("requester", result.Address))
			}
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}
