package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"classportal/internal/account"
	"classportal/internal/apperr"
	"classportal/internal/auth"
	"classportal/internal/listview"
	"classportal/internal/live"
	"classportal/internal/logger"
	"classportal/internal/portal"
)

// listRoutes describes a list view served both as a one-shot page and as a live stream.
type listRoutes[T any] struct {
	topic string
	desc  listview.Descriptor[T]
	load  func(ctx context.Context, c *gin.Context) ([]T, error)
	// totalUnits, when set, is computed over the unfiltered collection.
	totalUnits func([]T) *int
}

// resourceRoutes adds the admin mutations of a portal resource.
type resourceRoutes[T any] struct {
	resource   portal.Resource
	desc       listview.Descriptor[T]
	load       func(ctx context.Context, c *gin.Context) ([]T, error)
	create     gin.HandlerFunc
	totalUnits func([]T) *int
}

// listPage is the rendered view returned to clients.
type listPage[T any] struct {
	listview.Snapshot[T]
	TotalUnits *int `json:"totalUnits,omitempty"`
}

func (r listRoutes[T]) page(s listview.Snapshot[T], all []T) listPage[T] {
	p := listPage[T]{Snapshot: s}
	if r.totalUnits != nil && s.State == listview.StateReady {
		p.TotalUnits = r.totalUnits(all)
	}
	return p
}

func mount[T any](g *gin.RouterGroup, admin gin.HandlerFunc, h *handlers, r resourceRoutes[T], loc *time.Location) {
	lr := listRoutes[T]{topic: string(r.resource), desc: r.desc, load: r.load, totalUnits: r.totalUnits}
	name := "/" + string(r.resource)
	g.GET(name, listHandler(lr, loc))
	g.GET("/live"+name, liveHandler(h, lr, loc))
	g.POST(name, admin, r.create)
	g.DELETE(name+"/:id", admin, h.deleteResource(r.resource))
}

// criteriaFrom reads ?q=&date=&category=&page=&tz=. The timezone may also
// come from X-Timezone and falls back to the server default.
func criteriaFrom(c *gin.Context, fallback *time.Location) (listview.Criteria, int, error) {
	crit := listview.Criteria{
		Text:     c.Query("q"),
		Date:     c.Query("date"),
		Category: c.Query("category"),
		Location: fallback,
	}
	tz := c.Query("tz")
	if tz == "" {
		tz = c.GetHeader("X-Timezone")
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return crit, 0, apperr.Invalid("unknown timezone "+tz, "tz")
		}
		crit.Location = loc
	}
	if crit.Date != "" {
		if _, err := time.Parse(listview.DateLayout, crit.Date); err != nil {
			return crit, 0, apperr.Invalid("date must be YYYY-MM-DD", "date")
		}
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	return crit, page, nil
}

func listHandler[T any](r listRoutes[T], loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		crit, page, err := criteriaFrom(c, loc)
		if err != nil {
			_ = c.Error(err)
			return
		}
		items, err := r.load(c.Request.Context(), c)
		if err != nil {
			_ = c.Error(err)
			return
		}
		view := listview.NewView(r.desc, auth.ViewerFrom(c))
		view.Push(items)
		view.SetCriteria(crit)
		view.SetPage(page)
		c.JSON(http.StatusOK, r.page(view.Render(), items))
	}
}

func liveHandler[T any](h *handlers, r listRoutes[T], loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		crit, page, err := criteriaFrom(c, loc)
		if err != nil {
			_ = c.Error(err)
			return
		}
		subject := auth.ViewerFrom(c).Subject
		view := listview.NewView(r.desc, auth.ViewerFrom(c))
		view.SetCriteria(crit)
		view.SetPage(page)

		// Reload and Render both run on the session loop. The viewer is
		// resolved again on every reload so affordances follow role changes.
		var items []T
		h.serveLive(c, live.Session{
			Reload: func(ctx context.Context) error {
				viewer, err := h.Accounts.ResolveViewer(ctx, subject)
				if err != nil {
					return err
				}
				view.SetGate(viewer)
				got, err := r.load(ctx, c)
				if err != nil {
					return err
				}
				items = got
				view.Push(got)
				return nil
			},
			Apply: func(f live.ClientFrame) {
				if f.Criteria != nil {
					next := *f.Criteria
					next.Location = crit.Location
					view.SetCriteria(next)
				}
				if f.Page > 0 {
					view.SetPage(f.Page)
				}
			},
			Render: func() any { return r.page(view.Render(), items) },
		}, r.topic, account.RolesTopic)
	}
}

// serveLive upgrades the request and runs sess until the client leaves,
// reloading whenever any of topics changes.
func (h *handlers) serveLive(c *gin.Context, sess live.Session, topics ...string) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		logger.Warn().Err(err).Strs("topics", topics).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ctx := c.Request.Context()
	notify, cancel := live.SubscribeAll(ctx, h.Broker, topics...)
	defer cancel()

	sess.Conn = conn
	sess.Notify = notify
	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Debug().Err(err).Strs("topics", topics).Msg("live session ended")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func bindCreate[In, Out any](create func(context.Context, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(errBadBody)
			return
		}
		out, err := create(c.Request.Context(), in)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

// bindOwnedCreate is bindCreate for records that attach the viewer's uploads.
func bindOwnedCreate[In, Out any](create func(context.Context, string, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		bindCreate(func(ctx context.Context, in In) (Out, error) {
			return create(ctx, auth.ViewerFrom(c).UserID, in)
		})(c)
	}
}

func (h *handlers) deleteResource(r portal.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Portal.Delete(c.Request.Context(), r, c.Param("id")); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
