package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/jwt"
)

var tracer = otel.Tracer("auth")

const TokenSubject = "escrow"

type AuthService struct {
	config domain.Config
}

func NewAuthService(config domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	Address string
}

// AuthJwt accepts tokens addressed to this ledger and signed by an identity.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	claims, err := jwt.Validate(token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != TokenSubject {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{Address: claims.Issuer}, nil
}
