// Package chat mirrors one-to-one conversations between users.
package chat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"classportal/internal/account"
	"classportal/internal/apperr"
	"classportal/internal/live"
	"classportal/internal/logger"
	"classportal/internal/store"
	"classportal/internal/validate"
)

// Message types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
)

var (
	errNotParticipant = apperr.New(http.StatusForbidden, "not a participant of this chat")
	errSelfChat       = apperr.BadRequest("cannot open a chat with yourself")
	errChatNotFound   = apperr.NotFound("chat not found")
)

// Attachments turns a storage reference into a durable URL.
type Attachments interface {
	Attach(ctx context.Context, ownerID string, refs ...string) ([]string, error)
	Detach(ctx context.Context, ownerID string, refs ...string) error
}

// Draft is a message before it is sent. Text drafts carry content,
// media drafts carry the storage reference of an uploaded file.
type Draft struct {
	Type      string `json:"type" validate:"required,oneof=text image video audio"`
	Content   string `json:"content"`
	StorageID string `json:"storageId"`
}

// Summary is a row of the chat list.
type Summary struct {
	Chat
	Participants [2]string     `json:"participants"`
	With         *account.User `json:"with,omitempty"`
	LastMessage  *Message      `json:"lastMessage"`
}

// Service implements the chat operations. Every change notifies the chat topic.
type Service struct {
	repo   *Repository
	users  *account.Repository
	files  Attachments
	broker live.Broker
	now    func() time.Time
}

// NewService wires a service.
func NewService(repo *Repository, users *account.Repository, files Attachments, broker live.Broker) *Service {
	return &Service{repo: repo, users: users, files: files, broker: broker, now: time.Now}
}

// Open returns the chat between viewerID and otherID, creating it when none exists.
func (s *Service) Open(ctx context.Context, viewerID, otherID string) (Chat, error) {
	if viewerID == otherID {
		return Chat{}, errSelfChat
	}
	other, err := s.users.ByID(ctx, otherID)
	if err != nil {
		return Chat{}, err
	}
	if other == nil {
		return Chat{}, apperr.NotFound("user not found")
	}
	existing, err := s.repo.FindPair(ctx, viewerID, otherID)
	if err != nil {
		return Chat{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	c := Chat{ID: uuid.NewString(), ParticipantA: viewerID, ParticipantB: otherID, CreatedAt: s.now().UTC()}
	if err := s.repo.Insert(ctx, c); err != nil {
		if !store.IsUniqueViolation(err) {
			return Chat{}, err
		}
		// Lost a race with the other participant.
		found, ferr := s.repo.FindPair(ctx, viewerID, otherID)
		if ferr != nil || found == nil {
			return Chat{}, err
		}
		return *found, nil
	}
	c.ParticipantA, c.ParticipantB = pair(c.ParticipantA, c.ParticipantB)
	logger.Debug().Str("chat_id", c.ID).Msg("chat opened")
	// classmate rows carry the chat id
	if err := s.broker.Publish(ctx, account.ClassmatesTopic); err != nil {
		logger.Warn().Err(err).Msg("live publish failed")
	}
	return c, nil
}

// SendTo sends draft to recipientID, opening the conversation on first use.
func (s *Service) SendTo(ctx context.Context, viewerID, recipientID string, d Draft) (Message, error) {
	if err := checkDraft(d); err != nil {
		return Message{}, err
	}
	c, err := s.Open(ctx, viewerID, recipientID)
	if err != nil {
		return Message{}, err
	}
	return s.Send(ctx, viewerID, c.ID, d)
}

// Send appends draft to chatID. Only participants may send.
func (s *Service) Send(ctx context.Context, viewerID, chatID string, d Draft) (Message, error) {
	if err := checkDraft(d); err != nil {
		return Message{}, err
	}
	c, err := s.participantChat(ctx, viewerID, chatID)
	if err != nil {
		return Message{}, err
	}
	content := strings.TrimSpace(d.Content)
	if d.Type != TypeText {
		urls, err := s.files.Attach(ctx, viewerID, d.StorageID)
		if err != nil {
			return Message{}, err
		}
		content = urls[0]
	}
	m := Message{
		ID:        uuid.NewString(),
		ChatID:    c.ID,
		SenderID:  viewerID,
		Type:      d.Type,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		if d.Type != TypeText {
			if derr := s.files.Detach(ctx, viewerID, d.StorageID); derr != nil {
				logger.Warn().Err(derr).Str("ref", d.StorageID).Msg("detach failed")
			}
		}
		return Message{}, err
	}
	if err := s.broker.Publish(ctx, live.ChatTopic(c.ID)); err != nil {
		logger.Warn().Err(err).Str("chat_id", c.ID).Msg("live publish failed")
	}
	return m, nil
}

// Messages returns the conversation in arrival order.
func (s *Service) Messages(ctx context.Context, viewerID, chatID string) ([]Message, error) {
	if _, err := s.participantChat(ctx, viewerID, chatID); err != nil {
		return nil, err
	}
	return s.repo.Messages(ctx, chatID)
}

// Authorize fails unless viewerID takes part in chatID.
func (s *Service) Authorize(ctx context.Context, viewerID, chatID string) error {
	_, err := s.participantChat(ctx, viewerID, chatID)
	return err
}

// List returns the viewer's conversations with the other participant and the last message.
func (s *Service) List(ctx context.Context, viewerID string) ([]Summary, error) {
	chats, err := s.repo.ForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(chats))
	for _, c := range chats {
		other, err := s.users.ByID(ctx, c.Other(viewerID))
		if err != nil {
			return nil, err
		}
		last, err := s.repo.LastMessage(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Chat: c, Participants: c.Participants(), With: other, LastMessage: last})
	}
	return out, nil
}

func (s *Service) participantChat(ctx context.Context, viewerID, chatID string) (Chat, error) {
	c, err := s.repo.Get(ctx, chatID)
	if err != nil {
		return Chat{}, err
	}
	if c == nil {
		return Chat{}, errChatNotFound
	}
	if !c.Has(viewerID) {
		return Chat{}, errNotParticipant
	}
	return *c, nil
}

func checkDraft(d Draft) error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if d.Type == TypeText && strings.TrimSpace(d.Content) == "" {
		return apperr.Invalid("content must not be blank", "content")
	}
	if d.Type != TypeText && strings.TrimSpace(d.StorageID) == "" {
		return apperr.Invalid("storageId is required", "storageId")
	}
	return nil
}
