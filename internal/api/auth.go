package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/pkg/config"
	"github.com/amacivic/engagement/pkg/logging"
)

type actorKey struct{}

// Authenticator resolves the acting user from an HS256 bearer token.
// Requests without a usable token proceed anonymously; handlers that need
// an actor reject them.
type Authenticator struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

// NewAuthenticator creates an authenticator. An empty secret disables token
// verification and every request is anonymous.
func NewAuthenticator(cfg *config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		logger: logging.WithComponent("api-auth"),
	}
}

// Middleware stores the actor ID on the request context
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || len(a.secret) == 0 {
			c.Next()
			return
		}

		actorID, err := a.ParseBearer(header)
		if err != nil {
			a.logger.Debug("Ignoring bearer token", zap.Error(err))
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), actorKey{}, actorID))
		c.Next()
	}
}

// ParseBearer validates an Authorization header value and returns the subject
func (a *Authenticator) ParseBearer(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("authorization header must be a bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("invalid subject claim: %w", err)
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

// ActorID returns the authenticated user for the request, or ""
func ActorID(c *gin.Context) string {
	return ActorFromContext(c.Request.Context())
}

// ActorFromContext returns the authenticated user stored by the middleware
func ActorFromContext(ctx context.Context) string {
	actorID, _ := ctx.Value(actorKey{}).(string)
	return actorID
}
