package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const actorKey contextKey = "actor"

// Role names carried in the "roles" claim.
const (
	RoleAdmin     = "admin"
	RoleHospital  = "hospital"
	RoleClinician = "clinician"
	RoleLab       = "lab"
	RoleViewer    = "viewer"
)

// Claims is the JWT body issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	HospitalID  string   `json:"hospital_id,omitempty"`
	ClinicianID string   `json:"clinician_id,omitempty"`
	Roles       []string `json:"roles"`
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID      string
	HospitalID  uuid.UUID
	ClinicianID uuid.UUID
	Roles       []string
}

// HasRole reports whether the actor holds role. Admins hold every role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	// Revocations is consulted for tokens carrying a jti. Optional.
	Revocations RevocationStore
	Skipper     func(echo.Context) bool
}

func actorFromClaims(claims *Claims) (Actor, error) {
	a := Actor{UserID: claims.Subject, Roles: claims.Roles}
	if claims.HospitalID != "" {
		id, err := uuid.Parse(claims.HospitalID)
		if err != nil {
			return Actor{}, err
		}
		a.HospitalID = id
	}
	if claims.ClinicianID != "" {
		id, err := uuid.Parse(claims.ClinicianID)
		if err != nil {
			return Actor{}, err
		}
		a.ClinicianID = id
	}
	return a, nil
}

// JWTMiddleware validates HS256 bearer tokens and stores the resulting Actor
// on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	keyFunc := func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			if cfg.Revocations != nil && claims.ID != "" {
				revoked, err := cfg.Revocations.IsRevoked(c.Request().Context(), claims.ID)
				if err != nil {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "revocation check failed")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid identity claims")
			}

			c.SetRequest(c.Request().WithContext(ContextWithActor(c.Request().Context(), actor)))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without a token run as the given actor.
func DevAuthMiddleware(dev Actor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := ActorFromContext(c.Request().Context()); !ok {
				c.SetRequest(c.Request().WithContext(ContextWithActor(c.Request().Context(), dev)))
			}
			return next(c)
		}
	}
}

// DefaultDevActor is the identity used by DevAuthMiddleware when none is set.
func DefaultDevActor() Actor {
	return Actor{
		UserID:      "dev-user",
		HospitalID:  uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		ClinicianID: uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Roles:       []string{RoleAdmin},
	}
}

func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

func UserIDFromContext(ctx context.Context) string {
	a, _ := ActorFromContext(ctx)
	return a.UserID
}

func RolesFromContext(ctx context.Context) []string {
	a, _ := ActorFromContext(ctx)
	return a.Roles
}
