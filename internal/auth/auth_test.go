package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classportal/internal/apperr"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "classportal"
)

func init() { gin.SetMode(gin.TestMode) }

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("user_2abc", "student", testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", claims.Subject)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err = Parse(pair.RefreshToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.Type)
	_, err = ParseAccess(pair.RefreshToken, testKey, testIssuer)
	assert.Error(t, err)

	_, err = Parse(pair.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, testKey, "someone-else")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("user_2abc", "", testIssuer, testKey, -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

type stubResolver map[string]Viewer

func (s stubResolver) ResolveViewer(_ context.Context, subject string) (Viewer, error) {
	v, ok := s[subject]
	if !ok {
		return Viewer{}, apperr.ErrUserNotFound
	}
	return v, nil
}

func newRouter() *gin.Engine {
	users := stubResolver{
		"sub-student": {Subject: "sub-student", UserID: "u1", Username: "ug_19/1234"},
		"sub-admin":   {Subject: "sub-admin", UserID: "u2", Username: "ug_19/0001", Admin: true},
	}
	r := gin.New()
	g := r.Group("/v1", Identify(testKey, testIssuer, users))
	g.GET("/me", func(c *gin.Context) { c.JSON(http.StatusOK, ViewerFrom(c)) })
	g.DELETE("/notes/:id", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/hook", WebhookSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func token(t *testing.T, subject string) string {
	pair, err := Issue(subject, "", testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	return pair.AccessToken
}

func TestIdentify(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
		body   string
	}{
		{"no token", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/v1/me", nil) }, http.StatusUnauthorized, "Unauthorized"},
		{"garbage token", func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			req.Header.Set("Authorization", "Bearer nope")
			return req
		}, http.StatusUnauthorized, "Unauthorized"},
		{"unknown subject", func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, "sub-ghost"))
			return req
		}, http.StatusUnauthorized, "User not found"},
		{"bearer header", func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			req.Header.Set("Authorization", "bearer "+token(t, "sub-student"))
			return req
		}, http.StatusOK, `"userId":"u1"`},
		{"refresh token", func() *http.Request {
			pair, err := Issue("sub-student", "", testIssuer, testKey, time.Minute, time.Hour)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
			return req
		}, http.StatusUnauthorized, "Unauthorized"},
		{"query token", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/v1/me?token="+token(t, "sub-admin"), nil)
		}, http.StatusOK, `"admin":true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req())
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter()
	for subject, status := range map[string]int{
		"sub-student": http.StatusForbidden,
		"sub-admin":   http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodDelete, "/v1/notes/n1", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, subject))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, subject)
	}
}

func TestWebhookSecret(t *testing.T) {
	r := newRouter()
	for secret, status := range map[string]int{"": http.StatusUnauthorized, "wrong": http.StatusUnauthorized, "s3cret": http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		if secret != "" {
			req.Header.Set("X-Webhook-Secret", secret)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, secret)
	}
}
