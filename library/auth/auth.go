// Package auth resolves the session behind a request into an owner id.
package auth

import (
	"net/http"
	"strings"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/laisky-chart-files/library/jwt"
	"github.com/Laisky/laisky-chart-files/library/log"
)

const (
	// CookieName carries the session token set at login.
	CookieName = "token"

	ctxKeyClaims = "auth_session_claims"
)

// Authenticator verifies session tokens on incoming requests.
type Authenticator struct {
	signer *jwt.Signer
}

// New creates an authenticator backed by signer.
func New(signer *jwt.Signer) *Authenticator {
	return &Authenticator{signer: signer}
}

// RequireSession rejects requests without a valid session.
// The token is read from the bearer header first, then from the cookie.
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := tokenFromRequest(ctx)
		if token == "" {
			abort(ctx, http.StatusUnauthorized, "UNAUTHORIZED", "login required")
			return
		}

		claims, err := a.signer.Parse(token)
		if err != nil {
			log.Logger.Debug("reject session", zap.Error(err), zap.String("path", ctx.FullPath()))
			abort(ctx, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session")
			return
		}

		ctx.Set(ctxKeyClaims, claims)
		ctx.Next()
	}
}

// RequireAdmin must run after RequireSession.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, ok := Claims(ctx)
		if !ok || !claims.IsAdmin() {
			abort(ctx, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return
		}

		ctx.Next()
	}
}

// Claims returns the session verified by RequireSession.
func Claims(ctx *gin.Context) (*jwt.SessionClaims, bool) {
	v, ok := ctx.Get(ctxKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.SessionClaims)
	return claims, ok && claims != nil
}

// OwnerID returns the session subject, or "" without a session.
func OwnerID(ctx *gin.Context) string {
	if claims, ok := Claims(ctx); ok {
		return claims.Subject
	}
	return ""
}

func tokenFromRequest(ctx *gin.Context) string {
	if header := ctx.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token, err := ctx.Cookie(CookieName); err == nil {
		return token
	}

	return ""
}

func abort(ctx *gin.Context, status int, code, msg string) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": code, "message": msg, "retryable": false},
	})
}
