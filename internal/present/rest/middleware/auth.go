package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(
	auth *service.AuthService,
) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyIdentity")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			actor, err := s.auth.Authenticate(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: authentication failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIDCtxKey, actor.ID)
			ctx = context.WithValue(ctx, domain.RequesterNameCtxKey, actor.Name)
			span.SetAttributes(attribute.Int64("RequesterId", actor.ID))
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ActorFrom recovers the authenticated requester placed on the context
// by IdentifyIdentity.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	id, ok := ctx.Value(domain.RequesterIDCtxKey).(int64)
	if !ok {
		return domain.Actor{}, false
	}
	name, _ := ctx.Value(domain.RequesterNameCtxKey).(string)
	return domain.Actor{ID: id, Name: name}, true
}
