package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"classportal/internal/account"
	"classportal/internal/apperr"
	"classportal/internal/auth"
	"classportal/internal/chat"
	"classportal/internal/listview"
	"classportal/internal/live"
	"classportal/internal/storage"
)

var errBadBody = apperr.BadRequest("invalid request body")

type profile struct {
	account.User
	MatricNumber string `json:"matricNumber"`
}

func (h *handlers) syncUser(c *gin.Context) {
	var in account.SyncInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errBadBody)
		return
	}
	u, err := h.Accounts.Sync(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile{User: u, MatricNumber: u.MatricNumber()})
}

func (h *handlers) me(c *gin.Context) {
	u, err := h.Accounts.Me(c.Request.Context(), auth.ViewerFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile{User: u, MatricNumber: u.MatricNumber()})
}

func (h *handlers) updateImage(c *gin.Context) {
	var req struct {
		StorageID string `json:"storageId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errBadBody)
		return
	}
	u, err := h.Accounts.UpdateImage(c.Request.Context(), auth.ViewerFrom(c).UserID, req.StorageID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile{User: u, MatricNumber: u.MatricNumber()})
}

// -------- Storage --------

func (h *handlers) uploadURL(c *gin.Context) {
	target, err := h.Storage.GenerateUploadURL(c.Request.Context(), auth.ViewerFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, target)
}

func (h *handlers) acceptUpload(c *gin.Context) {
	body := c.Request.Body
	if h.Config.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.Config.MaxUploadBytes+1)
	}
	ref, err := h.Storage.Accept(c.Request.Context(), c.Param("token"), body, c.ContentType())
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = apperr.ErrTooLarge
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"storageId": ref})
}

// files serves blobs kept by the api process itself.
func (h *handlers) files(r *gin.Engine) {
	switch b := h.Storage.Backend().(type) {
	case *storage.Local:
		r.Static(storage.FilesPrefix, b.Dir)
	case *storage.Memory:
		r.GET(storage.FilesPrefix+"/*key", func(c *gin.Context) {
			data, ok := b.Get(strings.TrimPrefix(c.Param("key"), "/"))
			if !ok {
				_ = c.Error(apperr.ErrNotFound)
				return
			}
			c.Data(http.StatusOK, http.DetectContentType(data), data)
		})
	}
}

// -------- Chats --------

func (h *handlers) listChats(c *gin.Context) {
	chats, err := h.Chats.List(c.Request.Context(), auth.ViewerFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *handlers) openChat(c *gin.Context) {
	var req struct {
		Participant string `json:"participant"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Participant == "" {
		_ = c.Error(apperr.Invalid("participant is required", "participant"))
		return
	}
	ch, err := h.Chats.Open(c.Request.Context(), auth.ViewerFrom(c).UserID, req.Participant)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": ch.ID, "participants": ch.Participants(), "createdAt": ch.CreatedAt})
}

func (h *handlers) messages(c *gin.Context) {
	msgs, err := h.Chats.Messages(c.Request.Context(), auth.ViewerFrom(c).UserID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *handlers) sendMessage(c *gin.Context) {
	h.send(c, func(ctx context.Context, viewerID string, d chat.Draft) (chat.Message, error) {
		return h.Chats.Send(ctx, viewerID, c.Param("id"), d)
	})
}

func (h *handlers) sendToClassmate(c *gin.Context) {
	h.send(c, func(ctx context.Context, viewerID string, d chat.Draft) (chat.Message, error) {
		return h.Chats.SendTo(ctx, viewerID, c.Param("id"), d)
	})
}

func (h *handlers) send(c *gin.Context, fn func(context.Context, string, chat.Draft) (chat.Message, error)) {
	var d chat.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		_ = c.Error(errBadBody)
		return
	}
	m, err := fn(c.Request.Context(), auth.ViewerFrom(c).UserID, d)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

type chatView struct {
	ChatID   string         `json:"chatId"`
	State    listview.State `json:"state"`
	Messages []chat.Message `json:"messages"`
}

func (h *handlers) liveChat(c *gin.Context) {
	viewerID := auth.ViewerFrom(c).UserID
	chatID := c.Param("id")
	if err := h.Chats.Authorize(c.Request.Context(), viewerID, chatID); err != nil {
		_ = c.Error(err)
		return
	}
	view := chatView{ChatID: chatID, State: listview.StateLoading, Messages: []chat.Message{}}
	h.serveLive(c, live.Session{
		Reload: func(ctx context.Context) error {
			msgs, err := h.Chats.Messages(ctx, viewerID, chatID)
			if err != nil {
				return err
			}
			view.Messages = msgs
			view.State = listview.StateReady
			return nil
		},
		Render: func() any { return view },
	}, live.ChatTopic(chatID))
}
