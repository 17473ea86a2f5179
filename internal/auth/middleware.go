package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/plantid/internal/session"
)

type contextKey string

const (
	userIDKey   contextKey = "authUserID"
	usernameKey contextKey = "authUsername"

	// CookieName holds the session token for browser clients.
	CookieName = "plantid_session"
	// LoginPath is where unauthenticated browsers are sent.
	LoginPath = "/login"
)

// GetUserID retrieves the authenticated subject from context.
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(userIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// GetUsername retrieves the authenticated username from context.
func GetUsername(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(usernameKey).(string)
	return value
}

// WithUser returns a context carrying the given identity.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

// RequireLogin validates the session cookie, or a bearer token for API
// clients, and injects the user identity. Browsers without a valid session
// are redirected to the login page; bearer clients get a 401.
func RequireLogin(issuer *Issuer, revocations session.RevocationStore, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("auth")

	return func(c *gin.Context) {
		tokenString, bearer, err := extractToken(c)
		if err != nil {
			reject(c, bearer, err.Error())
			return
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			reject(c, bearer, err.Error())
			return
		}

		if !stillValid(c.Request.Context(), claims, revocations, logger) {
			reject(c, bearer, "session ended")
			return
		}

		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), claims.Subject, claims.Username))
		c.Set(string(userIDKey), claims.Subject)
		c.Set(string(usernameKey), claims.Username)

		c.Next()
	}
}

// ParseRequest returns the claims of the request's session, if it carries a
// valid one. It performs no revocation check.
func ParseRequest(c *gin.Context, issuer *Issuer) (*Claims, bool) {
	tokenString, _, err := extractToken(c)
	if err != nil {
		return nil, false
	}
	claims, err := issuer.Parse(tokenString)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// ParseActiveRequest is ParseRequest plus the revocation check RequireLogin
// performs.
func ParseActiveRequest(c *gin.Context, issuer *Issuer, revocations session.RevocationStore, logger *zap.Logger) (*Claims, bool) {
	claims, ok := ParseRequest(c, issuer)
	if !ok {
		return nil, false
	}
	if !stillValid(c.Request.Context(), claims, revocations, logger) {
		return nil, false
	}
	return claims, true
}

// stillValid reports whether the token behind claims has not been revoked.
// A failed lookup counts as revoked.
func stillValid(ctx context.Context, claims *Claims, revocations session.RevocationStore, logger *zap.Logger) bool {
	if revocations == nil || claims.ID == "" {
		return true
	}
	revoked, err := revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		if logger != nil {
			logger.Warn("revocation check failed, rejecting session", zap.Error(err))
		}
		return false
	}
	return !revoked
}

func extractToken(c *gin.Context) (token string, bearer bool, err error) {
	if header := c.Request.Header.Get("Authorization"); header != "" {
		token, err := extractBearerToken(header)
		return token, true, err
	}
	cookie, err := c.Cookie(CookieName)
	if err != nil || strings.TrimSpace(cookie) == "" {
		return "", false, errors.New("login required")
	}
	return cookie, false, nil
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func reject(c *gin.Context, bearer bool, message string) {
	if bearer {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
		return
	}
	c.Redirect(http.StatusFound, LoginPath)
	c.Abort()
}
