// Package account keeps the profile records behind identity-provider subjects.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"classportal/internal/apperr"
	"classportal/internal/auth"
	"classportal/internal/listview"
	"classportal/internal/live"
	"classportal/internal/logger"
	"classportal/internal/queue"
	"classportal/internal/store"
	"classportal/internal/validate"
)

// ClassmatesTopic is the live topic notified whenever a profile changes.
const ClassmatesTopic = "classmates"

// RolesTopic is notified whenever an admin flag changes.
const RolesTopic = "roles"

// Attachments turns a storage reference into a durable URL.
type Attachments interface {
	Attach(ctx context.Context, ownerID string, refs ...string) ([]string, error)
	Detach(ctx context.Context, ownerID string, refs ...string) error
}

// ChatIndex finds existing conversations of a user, keyed by the other participant.
type ChatIndex interface {
	Partners(ctx context.Context, userID string) (map[string]string, error)
}

// SyncInput is the identity-provider payload for a created or updated user.
type SyncInput struct {
	Subject  string `json:"subject" validate:"notblank"`
	Name     string `json:"name"`
	Username string `json:"username" validate:"notblank"`
	Email    string `json:"email" validate:"omitempty,email"`
	Image    string `json:"image"`
}

// Classmate is a row of the classmates view.
type Classmate struct {
	User
	ChatID string `json:"chatId,omitempty"`
}

// ClassmateDescriptor filters classmates by name. Users without a name never match a search.
func ClassmateDescriptor(pageSize int) listview.Descriptor[Classmate] {
	return listview.Descriptor[Classmate]{
		Name:     ClassmatesTopic,
		PageSize: pageSize,
		Columns: []listview.Column{
			{Key: "image", Label: ""},
			{Key: "name", Label: "Name"},
			{Key: "username", Label: "Matric No."},
		},
		Text: func(c Classmate) []string { return listview.Field(c.Name) },
	}
}

// Service implements the account operations.
type Service struct {
	repo   *Repository
	files  Attachments
	chats  ChatIndex
	broker live.Broker
	jobs   queue.Queue
	now    func() time.Time
}

// NewService wires a service. chats may be nil until the chat module is wired.
func NewService(repo *Repository, files Attachments, chats ChatIndex, broker live.Broker, jobs queue.Queue) *Service {
	return &Service{repo: repo, files: files, chats: chats, broker: broker, jobs: jobs, now: time.Now}
}

// Sync creates or refreshes the record for an identity subject. New users are never admin.
func (s *Service) Sync(ctx context.Context, in SyncInput) (User, error) {
	if err := validate.Struct(in); err != nil {
		return User{}, err
	}
	u := User{
		ID:        uuid.NewString(),
		Subject:   strings.TrimSpace(in.Subject),
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		Image:     strings.TrimSpace(in.Image),
		CreatedAt: s.now().UTC(),
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		u.Name = &name
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, apperr.Invalid("username already taken", "username")
		}
		return User{}, err
	}
	saved, err := s.repo.BySubject(ctx, u.Subject)
	if err != nil {
		return User{}, err
	}
	if saved == nil {
		return User{}, apperr.ErrUserNotFound
	}
	logger.Info().Str("user_id", saved.ID).Str("username", saved.Username).Msg("user synced")
	s.changed(ctx)
	return *saved, nil
}

// ResolveViewer maps an identity subject to the request capability.
func (s *Service) ResolveViewer(ctx context.Context, subject string) (auth.Viewer, error) {
	u, err := s.repo.BySubject(ctx, subject)
	if err != nil {
		return auth.Viewer{}, err
	}
	if u == nil {
		return auth.Viewer{}, apperr.ErrUserNotFound
	}
	return auth.Viewer{Subject: u.Subject, UserID: u.ID, Username: u.Username, Admin: u.Admin}, nil
}

// Me returns the viewer's own profile.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	u, err := s.repo.ByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, apperr.ErrUserNotFound
	}
	return *u, nil
}

// UpdateImage points the profile image at an uploaded file. The previous
// image is handed to the janitor.
func (s *Service) UpdateImage(ctx context.Context, userID, storageRef string) (User, error) {
	if strings.TrimSpace(storageRef) == "" {
		return User{}, apperr.Invalid("storageId is required", "storageId")
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return User{}, err
	}
	urls, err := s.files.Attach(ctx, u.ID, storageRef)
	if err != nil {
		return User{}, err
	}
	old := u.Image
	if err := s.repo.SetImage(ctx, u.ID, urls[0]); err != nil {
		if derr := s.files.Detach(ctx, u.ID, storageRef); derr != nil {
			logger.Warn().Err(derr).Str("ref", storageRef).Msg("detach failed")
		}
		return User{}, err
	}
	u.Image = urls[0]
	if old != "" && old != u.Image {
		if err := s.jobs.Publish(ctx, queue.Message{Type: queue.TypeStorageRelease, Body: []byte(old)}); err != nil {
			logger.Warn().Err(err).Str("url", old).Msg("queue publish failed")
		}
	}
	s.changed(ctx)
	return u, nil
}

// Promote sets the admin flag of username.
func (s *Service) Promote(ctx context.Context, username string, admin bool) error {
	found, err := s.repo.SetAdmin(ctx, strings.TrimSpace(username), admin)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("no user named " + username)
	}
	logger.Info().Str("username", username).Bool("admin", admin).Msg("admin flag changed")
	s.changed(ctx)
	if err := s.broker.Publish(ctx, RolesTopic); err != nil {
		logger.Warn().Err(err).Msg("live publish failed")
	}
	return nil
}

// Classmates lists every user except the viewer with the id of any
// conversation they already share. No conversation is created here.
func (s *Service) Classmates(ctx context.Context, viewerID string) ([]Classmate, error) {
	users, err := s.repo.ListExcept(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	partners := map[string]string{}
	if s.chats != nil {
		if partners, err = s.chats.Partners(ctx, viewerID); err != nil {
			return nil, err
		}
	}
	out := make([]Classmate, 0, len(users))
	for _, u := range users {
		out = append(out, Classmate{User: u, ChatID: partners[u.ID]})
	}
	return out, nil
}

func (s *Service) changed(ctx context.Context) {
	if err := s.broker.Publish(ctx, ClassmatesTopic); err != nil {
		logger.Warn().Err(err).Msg("live publish failed")
	}
}
