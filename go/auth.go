package careserver

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/Apurer/temporary-care-api/internal/shared/errors"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

// ErrInvalidToken covers every bearer token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims is the token payload: the subject is the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. Tokens are issued elsewhere.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator builds an authenticator for the shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Actor parses and verifies a raw token.
func (a *Authenticator) Actor(raw string) (identity.Actor, error) {
	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return identity.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return identity.Actor{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	role, ok := identity.ParseRole(claims.Role)
	if !ok {
		return identity.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return identity.Actor{ID: subject, Role: role}, nil
}

// Sign issues a token for actor. Used by tooling and tests.
func (a *Authenticator) Sign(actor identity.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func authenticate(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			respondProblem(c, apierrors.ErrUnauthorized.WithDetail("authentication is not configured"))
			return
		}
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="temporary-care"`)
			respondProblem(c, apierrors.ErrUnauthorized.WithDetail("bearer token required"))
			return
		}
		actor, err := a.Actor(strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			respondProblem(c, apierrors.ErrUnauthorized.WithDetail("invalid bearer token"))
			return
		}
		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func requireRoles(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := identity.FromContext(c.Request.Context())
		if !ok {
			respondProblem(c, apierrors.ErrUnauthorized)
			return
		}
		if !slices.Contains(roles, actor.Role) {
			respondProblem(c, apierrors.ErrForbidden.WithDetail(fmt.Sprintf("role %s may not call this operation", actor.Role)))
			return
		}
		c.Next()
	}
}
