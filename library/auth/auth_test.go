package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-chart-files/library/jwt"
)

func newRouter(t *testing.T) (*gin.Engine, *jwt.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := jwt.NewSigner([]byte("secret"))
	require.NoError(t, err)
	authn := New(signer)

	r := gin.New()
	r.GET("/me", authn.RequireSession(), func(ctx *gin.Context) {
		ctx.String(http.StatusOK, OwnerID(ctx))
	})
	r.GET("/admin", authn.RequireSession(), authn.RequireAdmin(), func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	return r, signer
}

func TestRequireSession(t *testing.T) {
	r, signer := newRouter(t)
	token, err := signer.Sign("user1", jwt.RoleUser, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "UNAUTHORIZED")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	r, signer := newRouter(t)

	userToken, err := signer.Sign("user1", jwt.RoleUser, time.Hour)
	require.NoError(t, err)
	adminToken, err := signer.Sign("root", jwt.RoleAdmin, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
