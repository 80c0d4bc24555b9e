// Package api exposes the portal over HTTP and websockets.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classportal/internal/account"
	"classportal/internal/auth"
	"classportal/internal/chat"
	"classportal/internal/config"
	"classportal/internal/httpmiddleware"
	"classportal/internal/live"
	"classportal/internal/portal"
	"classportal/internal/storage"
	"classportal/internal/store"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Config   config.App
	DB       *store.DB
	Redis    *store.Redis
	Portal   *portal.Service
	Accounts *account.Service
	Chats    *chat.Service
	Storage  *storage.Service
	Broker   live.Broker
	// Limiter is optional; nil disables rate limiting.
	Limiter httpmiddleware.Limiter
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine serving every route.
func NewRouter(d Deps) *gin.Engine {
	h := &handlers{Deps: d}

	r := gin.New()
	r.Use(httpmiddleware.Errors())
	r.Use(httpmiddleware.Logging("/healthz", "/metrics"))
	r.Use(httpmiddleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Timezone", "X-Webhook-Secret"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	if d.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(d.Limiter))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.health)
	h.files(r)

	r.POST("/v1/identity/users", auth.WebhookSecret(d.Config.WebhookSecret), h.syncUser)
	// the token in the path is the credential
	r.PUT(storage.ObjectsPath+":token", h.acceptUpload)
	r.POST(storage.ObjectsPath+":token", h.acceptUpload)

	v1 := r.Group("/v1", auth.Identify(d.Config.JWTSigningKey, d.Config.JWTIssuer, d.Accounts))
	admin := auth.RequireAdmin()

	v1.GET("/me", h.me)
	v1.PUT("/me/image", h.updateImage)
	v1.POST("/storage/upload-url", h.uploadURL)

	pageSize := d.Config.PageSize
	loc := d.Config.Location()
	mount(v1, admin, h, resourceRoutes[portal.Announcement]{
		resource: portal.Announcements,
		desc:     portal.AnnouncementDescriptor(pageSize),
		load:     func(ctx context.Context, _ *gin.Context) ([]portal.Announcement, error) { return d.Portal.Repo().ListAnnouncements(ctx) },
		create:   bindOwnedCreate(d.Portal.CreateAnnouncement),
	}, loc)
	mount(v1, admin, h, resourceRoutes[portal.Assignment]{
		resource: portal.Assignments,
		desc:     portal.AssignmentDescriptor(pageSize),
		load:     func(ctx context.Context, _ *gin.Context) ([]portal.Assignment, error) { return d.Portal.Repo().ListAssignments(ctx) },
		create:   bindCreate(d.Portal.CreateAssignment),
	}, loc)
	mount(v1, admin, h, resourceRoutes[portal.Note]{
		resource: portal.Notes,
		desc:     portal.NoteDescriptor(pageSize),
		load:     func(ctx context.Context, _ *gin.Context) ([]portal.Note, error) { return d.Portal.Repo().ListNotes(ctx) },
		create:   bindOwnedCreate(d.Portal.CreateNote),
	}, loc)
	mount(v1, admin, h, resourceRoutes[portal.Course]{
		resource: portal.Courses,
		desc:     portal.CourseDescriptor(pageSize),
		load:     func(ctx context.Context, _ *gin.Context) ([]portal.Course, error) { return d.Portal.Repo().ListCourses(ctx) },
		create:   bindCreate(d.Portal.CreateCourse),
		totalUnits: func(items []portal.Course) *int {
			total := portal.TotalUnits(items)
			return &total
		},
	}, loc)
	mount(v1, admin, h, resourceRoutes[portal.ShopItem]{
		resource: portal.Shop,
		desc:     portal.ShopDescriptor(pageSize),
		load: func(ctx context.Context, c *gin.Context) ([]portal.ShopItem, error) {
			return d.Portal.Repo().ListShopItems(ctx, c.Query("course"))
		},
		create: bindCreate(d.Portal.CreateShopItem),
	}, loc)

	classmates := listRoutes[account.Classmate]{
		topic: account.ClassmatesTopic,
		desc:  account.ClassmateDescriptor(d.Config.ClassmatesPageSize),
		load: func(ctx context.Context, c *gin.Context) ([]account.Classmate, error) {
			return d.Accounts.Classmates(ctx, auth.ViewerFrom(c).UserID)
		},
	}
	v1.GET("/classmates", listHandler(classmates, loc))
	v1.GET("/live/classmates", liveHandler(h, classmates, loc))
	v1.POST("/classmates/:id/messages", h.sendToClassmate)

	v1.GET("/chats", h.listChats)
	v1.POST("/chats", h.openChat)
	v1.GET("/chats/:id/messages", h.messages)
	v1.POST("/chats/:id/messages", h.sendMessage)
	v1.GET("/live/chats/:id", h.liveChat)

	return r
}

func (h *handlers) health(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.DB != nil && h.DB.Healthy(ctx)
	redisHealthy := h.Redis == nil || h.Redis.Healthy(ctx)
	status := http.StatusOK
	if !dbHealthy || !redisHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy, "storage": h.Storage.Backend().Name()})
}
