package portal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"classportal/internal/apperr"
	"classportal/internal/live"
	"classportal/internal/logger"
	"classportal/internal/queue"
	"classportal/internal/validate"
)

// NoImagesMessage is reported for a note submitted without pages.
const NoImagesMessage = "Please upload at least one image."

// Attachments turns storage references into durable URLs and keeps them alive.
type Attachments interface {
	Attach(ctx context.Context, ownerID string, refs ...string) ([]string, error)
	Detach(ctx context.Context, ownerID string, refs ...string) error
}

// Service implements the create and delete mutations of every resource.
// Each mutation notifies the resource topic; deletions hand attachment URLs to the janitor.
type Service struct {
	repo   *Repository
	files  Attachments
	broker live.Broker
	jobs   queue.Queue
	now    func() time.Time
}

// NewService wires a service.
func NewService(repo *Repository, files Attachments, broker live.Broker, jobs queue.Queue) *Service {
	return &Service{repo: repo, files: files, broker: broker, jobs: jobs, now: time.Now}
}

// Repo exposes the read side for list views.
func (s *Service) Repo() *Repository { return s.repo }

// AnnouncementInput creates an announcement. Fields the kind does not carry are dropped.
type AnnouncementInput struct {
	Kind        string `json:"kind" validate:"required"`
	Description string `json:"description" validate:"notblank"`
	CourseCode  string `json:"courseCode" validate:"omitempty,max=20"`
	Venue       string `json:"venue"`
	Attachment  string `json:"storageId"`
}

// AssignmentInput creates an assignment.
type AssignmentInput struct {
	Title      string   `json:"title" validate:"omitempty,max=20"`
	CourseCode string   `json:"courseCode" validate:"notblank"`
	Questions  []string `json:"questions" validate:"required,min=1,dive,notblank"`
}

// NoteInput creates a note from uploaded pages.
type NoteInput struct {
	Title      string   `json:"title" validate:"notblank,max=20"`
	CourseCode string   `json:"courseCode" validate:"notblank"`
	Files      []string `json:"storageIds" validate:"dive,notblank"`
}

// CourseInput creates a catalogue entry.
type CourseInput struct {
	CourseCode string `json:"course" validate:"notblank,max=20"`
	Unit       int    `json:"unit" validate:"gt=0"`
}

// ShopInput lists a manual for sale. Deadline is dd/MM/yyyy.
type ShopInput struct {
	Course   string  `json:"course" validate:"notblank"`
	Name     string  `json:"name" validate:"notblank"`
	Price    float64 `json:"price" validate:"gt=0"`
	URL      string  `json:"url" validate:"required,url"`
	Deadline string  `json:"deadline" validate:"required,datetime=02/01/2006"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CreateAnnouncement validates in, attaches the optional file uploaded by
// ownerID and stores the notice.
func (s *Service) CreateAnnouncement(ctx context.Context, ownerID string, in AnnouncementInput) (Announcement, error) {
	if err := validate.Struct(in); err != nil {
		return Announcement{}, err
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return Announcement{}, apperr.Invalid(err.Error(), "kind")
	}
	fields := kind.Fields()

	a := Announcement{
		ID:          uuid.NewString(),
		Title:       optional(string(kind)),
		Description: optional(in.Description),
		CreatedAt:   s.now().UTC(),
	}
	if fields.Course {
		a.CourseCode = optional(in.CourseCode)
	}
	if fields.Venue {
		a.Venue = optional(in.Venue)
	}
	var refs []string
	if fields.Attachment && in.Attachment != "" {
		refs = []string{in.Attachment}
		urls, err := s.files.Attach(ctx, ownerID, refs...)
		if err != nil {
			return Announcement{}, err
		}
		a.Attachment = &urls[0]
	}
	if err := s.repo.InsertAnnouncement(ctx, a); err != nil {
		s.detach(ctx, ownerID, refs)
		return Announcement{}, err
	}
	s.changed(ctx, Announcements)
	return a, nil
}

// detach hands refs of a record that was never stored back to the sweeper.
func (s *Service) detach(ctx context.Context, ownerID string, refs []string) {
	if len(refs) == 0 {
		return
	}
	if err := s.files.Detach(ctx, ownerID, refs...); err != nil {
		logger.Warn().Err(err).Strs("refs", refs).Msg("detach failed")
	}
}

// CreateAssignment stores a question list.
func (s *Service) CreateAssignment(ctx context.Context, in AssignmentInput) (Assignment, error) {
	if err := validate.Struct(in); err != nil {
		return Assignment{}, err
	}
	questions := make([]string, 0, len(in.Questions))
	for _, q := range in.Questions {
		questions = append(questions, strings.TrimSpace(q))
	}
	a := Assignment{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(in.Title),
		CourseCode: strings.TrimSpace(in.CourseCode),
		Questions:  questions,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.InsertAssignment(ctx, a); err != nil {
		return Assignment{}, err
	}
	s.changed(ctx, Assignments)
	return a, nil
}

// CreateNote attaches every page ownerID uploaded and stores the note.
func (s *Service) CreateNote(ctx context.Context, ownerID string, in NoteInput) (Note, error) {
	if len(in.Files) == 0 {
		return Note{}, apperr.Invalid(NoImagesMessage, "storageIds")
	}
	if err := validate.Struct(in); err != nil {
		return Note{}, err
	}
	urls, err := s.files.Attach(ctx, ownerID, in.Files...)
	if err != nil {
		return Note{}, err
	}
	n := Note{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(in.Title),
		CourseCode: strings.TrimSpace(in.CourseCode),
		ImageURLs:  urls,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.InsertNote(ctx, n); err != nil {
		s.detach(ctx, ownerID, in.Files)
		return Note{}, err
	}
	s.changed(ctx, Notes)
	return n, nil
}

// CreateCourse adds a course to the catalogue.
func (s *Service) CreateCourse(ctx context.Context, in CourseInput) (Course, error) {
	if err := validate.Struct(in); err != nil {
		return Course{}, err
	}
	c := Course{
		ID:         uuid.NewString(),
		CourseCode: strings.TrimSpace(in.CourseCode),
		Unit:       in.Unit,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.InsertCourse(ctx, c); err != nil {
		return Course{}, err
	}
	s.changed(ctx, Courses)
	return c, nil
}

// CreateShopItem lists a manual.
func (s *Service) CreateShopItem(ctx context.Context, in ShopInput) (ShopItem, error) {
	if err := validate.Struct(in); err != nil {
		return ShopItem{}, err
	}
	item := ShopItem{
		ID:        uuid.NewString(),
		Course:    strings.TrimSpace(in.Course),
		Name:      strings.TrimSpace(in.Name),
		Price:     in.Price,
		URL:       strings.TrimSpace(in.URL),
		Deadline:  in.Deadline,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertShopItem(ctx, item); err != nil {
		return ShopItem{}, err
	}
	s.changed(ctx, Shop)
	return item, nil
}

// Delete removes id from resource. Deleting an id that is already gone is a no-op.
func (s *Service) Delete(ctx context.Context, resource Resource, id string) error {
	var (
		removed  bool
		err      error
		released []string
	)
	switch resource {
	case Announcements:
		a, gerr := s.repo.GetAnnouncement(ctx, id)
		if gerr != nil {
			return gerr
		}
		if a != nil && a.Attachment != nil {
			released = append(released, *a.Attachment)
		}
		removed, err = s.repo.DeleteAnnouncement(ctx, id)
	case Assignments:
		removed, err = s.repo.DeleteAssignment(ctx, id)
	case Notes:
		n, gerr := s.repo.GetNote(ctx, id)
		if gerr != nil {
			return gerr
		}
		if n != nil {
			released = append(released, n.ImageURLs...)
		}
		removed, err = s.repo.DeleteNote(ctx, id)
	case Courses:
		removed, err = s.repo.DeleteCourse(ctx, id)
	case Shop:
		removed, err = s.repo.DeleteShopItem(ctx, id)
	default:
		return apperr.NotFound("unknown resource " + string(resource))
	}
	if err != nil {
		return err
	}
	if !removed {
		logger.Debug().Str("resource", string(resource)).Str("id", id).Msg("delete: already gone")
		return nil
	}
	for _, url := range released {
		if err := s.jobs.Publish(ctx, queue.Message{Type: queue.TypeStorageRelease, Body: []byte(url)}); err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("queue publish failed")
		}
	}
	s.changed(ctx, resource)
	return nil
}

// TotalUnits sums the units of the whole catalogue.
func TotalUnits(courses []Course) int {
	total := 0
	for _, c := range courses {
		total += c.Unit
	}
	return total
}

func (s *Service) changed(ctx context.Context, r Resource) {
	if err := s.broker.Publish(ctx, string(r)); err != nil {
		logger.Warn().Err(err).Str("resource", string(r)).Msg("live publish failed")
	}
}
