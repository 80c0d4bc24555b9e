package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classportal/internal/apperr"
	"classportal/internal/httpmiddleware"
)

const viewerKey = "viewer"

// Viewer is the capability resolved once per request at the auth boundary.
type Viewer struct {
	Subject  string `json:"subject"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// IsAdmin reports whether the viewer may create and delete catalogue records.
func (v Viewer) IsAdmin() bool { return v.Admin }

// ViewerResolver loads the profile record for an identity subject.
// It returns apperr.ErrUserNotFound when no record exists.
type ViewerResolver interface {
	ResolveViewer(ctx context.Context, subject string) (Viewer, error)
}

// Identify requires an identity token (bearer header, or ?token= for websockets)
// and stores the resolved Viewer on the context.
func Identify(signingKey, issuer string, users ViewerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c)
		if tokenStr == "" {
			abort(c, apperr.ErrUnauthorized)
			return
		}
		claims, err := ParseAccess(tokenStr, signingKey, issuer)
		if err != nil {
			abort(c, apperr.ErrUnauthorized)
			return
		}
		viewer, err := users.ResolveViewer(c.Request.Context(), claims.Subject)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set("claims", claims)
		c.Set(viewerKey, viewer)
		c.Set(httpmiddleware.UserIDKey, viewer.UserID)
		c.Next()
	}
}

// RequireAdmin rejects viewers without the admin flag.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ViewerFrom(c).IsAdmin() {
			abort(c, apperr.ErrForbidden)
			return
		}
		c.Next()
	}
}

// ViewerFrom returns the viewer set by Identify, or the zero Viewer.
func ViewerFrom(c *gin.Context) Viewer {
	v, _ := c.Get(viewerKey)
	viewer, _ := v.(Viewer)
	return viewer
}

func bearer(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return c.Query("token")
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
}

// WebhookSecret guards identity-provider callbacks with a shared secret header.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Webhook-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
