package portalclient

import (
	"context"
	"net/http"
	"net/url"

	"classportal/internal/account"
	"classportal/internal/chat"
	"classportal/internal/portal"
)

// Profile is the caller's account as returned by /v1/me.
type Profile struct {
	account.User
	MatricNumber string `json:"matricNumber"`
}

func create[Out any](ctx context.Context, c *Client, resource portal.Resource, in any) (Out, error) {
	var out Out
	err := c.do(ctx, http.MethodPost, "/v1/"+string(resource), in, &out)
	return out, err
}

// SubmitNote validates f, uploads every page and creates the note.
func (c *Client) SubmitNote(ctx context.Context, f NoteForm) (portal.Note, error) {
	if err := f.Validate(); err != nil {
		return portal.Note{}, err
	}
	refs, err := c.uploadAll(ctx, f.Images)
	if err != nil {
		return portal.Note{}, err
	}
	return create[portal.Note](ctx, c, portal.Notes, portal.NoteInput{
		Title:      f.Title,
		CourseCode: f.CourseCode,
		Files:      refs,
	})
}

func (c *Client) SubmitAssignment(ctx context.Context, f *AssignmentForm) (portal.Assignment, error) {
	if err := f.Validate(); err != nil {
		return portal.Assignment{}, err
	}
	return create[portal.Assignment](ctx, c, portal.Assignments, portal.AssignmentInput{
		Title:      f.Title,
		CourseCode: f.CourseCode,
		Questions:  f.Questions,
	})
}

func (c *Client) SubmitCourse(ctx context.Context, f CourseForm) (portal.Course, error) {
	if err := f.Validate(); err != nil {
		return portal.Course{}, err
	}
	return create[portal.Course](ctx, c, portal.Courses, portal.CourseInput{CourseCode: f.CourseCode, Unit: f.Unit})
}

func (c *Client) SubmitShopItem(ctx context.Context, f ShopForm) (portal.ShopItem, error) {
	if err := f.Validate(); err != nil {
		return portal.ShopItem{}, err
	}
	return create[portal.ShopItem](ctx, c, portal.Shop, portal.ShopInput(f))
}

// SubmitAnnouncement validates form, uploads its attachment when the kind has
// one and creates the announcement.
func (c *Client) SubmitAnnouncement(ctx context.Context, form AnnouncementForm) (portal.Announcement, error) {
	if err := validateForm(form); err != nil {
		return portal.Announcement{}, err
	}
	var ref string
	if f := attachmentOf(form); f != nil {
		var err error
		if ref, err = c.Upload(ctx, *f); err != nil {
			return portal.Announcement{}, err
		}
	}
	in, err := announcementInput(form, ref)
	if err != nil {
		return portal.Announcement{}, err
	}
	return create[portal.Announcement](ctx, c, portal.Announcements, in)
}

// SendMessage posts a draft to an open conversation.
func (c *Client) SendMessage(ctx context.Context, chatID string, d chat.Draft) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, "/v1/chats/"+url.PathEscape(chatID)+"/messages", d, &m)
	return m, err
}

// SendToClassmate posts a draft to userID, opening the conversation on first send.
func (c *Client) SendToClassmate(ctx context.Context, userID string, d chat.Draft) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, "/v1/classmates/"+url.PathEscape(userID)+"/messages", d, &m)
	return m, err
}

// UploadMedia uploads f and returns a draft carrying it.
func (c *Client) UploadMedia(ctx context.Context, kind string, f File) (chat.Draft, error) {
	ref, err := c.Upload(ctx, f)
	if err != nil {
		return chat.Draft{}, err
	}
	return chat.Draft{Type: kind, StorageID: ref}, nil
}
