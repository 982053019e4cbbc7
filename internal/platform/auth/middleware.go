// Package auth binds request identities: staff principals via JWT and
// facilities via API key. Identities are resolved once here and passed to
// services as explicit arguments, never read back from ambient state.
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

const (
	doctorIDKey contextKey = "doctor_id"
	rolesKey    contextKey = "roles"
)

// Claims carries the staff identity inside a signed token. Subject is the
// doctor's UUID; tokens are issued by the external account system.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// JWTConfig configures staff token verification.
type JWTConfig struct {
	SigningKey []byte
}

// JWTMiddleware verifies the Bearer token on every request and attaches the
// doctor identity to the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return cfg.SigningKey, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			doctorID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			ctx := context.WithValue(c.Request().Context(), doctorIDKey, doctorID)
			ctx = context.WithValue(ctx, rolesKey, claims.Roles)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("doctor_id", doctorID)
			return next(c)
		}
	}
}

// DevAuthMiddleware trusts an X-Doctor-ID header instead of verifying a
// token. Development only; config.Validate refuses this outside ENV=development.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			doctorID := uuid.Nil
			if raw := c.Request().Header.Get("X-Doctor-ID"); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					doctorID = id
				}
			}
			ctx := context.WithValue(c.Request().Context(), doctorIDKey, doctorID)
			ctx = context.WithValue(ctx, rolesKey, []string{"physician"})
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("doctor_id", doctorID)
			return next(c)
		}
	}
}

// DoctorIDFromContext returns the authenticated staff principal, or uuid.Nil
// when the request was not staff-authenticated.
func DoctorIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(doctorIDKey).(uuid.UUID)
	return id
}

// RolesFromContext returns the staff roles attached by the middleware.
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}
