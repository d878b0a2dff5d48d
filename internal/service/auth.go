package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/campusworks/edubase/internal/domain"
)

var tracer = otel.Tracer("service")

// AuthService resolves bearer tokens against the statically configured
// user list.
type AuthService struct {
	byToken map[string]domain.Credential
}

func NewAuthService(creds []domain.Credential) *AuthService {
	byToken := make(map[string]domain.Credential, len(creds))
	for _, c := range creds {
		byToken[c.Token] = c
	}
	return &AuthService{
		byToken: byToken,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Actor, error) {
	_, span := tracer.Start(ctx, "Auth.Service.Authenticate")
	defer span.End()

	cred, ok := s.byToken[token]
	if !ok {
		err := fmt.Errorf("unknown token")
		span.RecordError(err)
		return nil, err
	}

	return &domain.Actor{
		ID:   cred.UserID,
		Name: cred.Name,
	}, nil
}
