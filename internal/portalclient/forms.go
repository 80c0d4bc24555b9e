package portalclient

import (
	"strings"

	"github.com/pkg/errors"

	"classportal/internal/apperr"
	"classportal/internal/portal"
	"classportal/internal/validate"
)

// ErrQuestionIncomplete is returned by AddQuestion while the last question is blank.
var ErrQuestionIncomplete = errors.New("Please complete the current question before adding another")

// File is one attachment picked by the user.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// NoteForm uploads the pages of a note.
type NoteForm struct {
	Title      string `json:"title" validate:"notblank,max=20"`
	CourseCode string `json:"course" validate:"notblank"`
	Images     []File `json:"-"`
}

// Validate checks the form without touching the network.
func (f NoteForm) Validate() error {
	if len(f.Images) == 0 {
		return apperr.Invalid(portal.NoImagesMessage, "images")
	}
	return validate.Struct(f)
}

// AssignmentForm holds a growing list of questions. It starts with one empty question.
type AssignmentForm struct {
	Title      string   `json:"title" validate:"notblank,max=20"`
	CourseCode string   `json:"course" validate:"notblank"`
	Questions  []string `json:"questions" validate:"min=1,dive,notblank,min=10"`
}

// NewAssignmentForm returns a form with a single blank question.
func NewAssignmentForm() *AssignmentForm {
	return &AssignmentForm{Questions: []string{""}}
}

// AddQuestion appends a blank question unless the last one is still blank.
func (f *AssignmentForm) AddQuestion() error {
	if n := len(f.Questions); n > 0 && strings.TrimSpace(f.Questions[n-1]) == "" {
		return ErrQuestionIncomplete
	}
	f.Questions = append(f.Questions, "")
	return nil
}

// SetQuestion replaces question i.
func (f *AssignmentForm) SetQuestion(i int, text string) {
	if i >= 0 && i < len(f.Questions) {
		f.Questions[i] = text
	}
}

// RemoveQuestion drops question i. The last remaining question is kept.
func (f *AssignmentForm) RemoveQuestion(i int) {
	if len(f.Questions) <= 1 || i < 0 || i >= len(f.Questions) {
		return
	}
	f.Questions = append(f.Questions[:i], f.Questions[i+1:]...)
}

func (f AssignmentForm) Validate() error { return validate.Struct(f) }

// CourseForm adds a course to the catalogue.
type CourseForm struct {
	CourseCode string `json:"course" validate:"notblank,max=20"`
	Unit       int    `json:"unit" validate:"gt=0"`
}

func (f CourseForm) Validate() error { return validate.Struct(f) }

// ShopForm lists a manual. Deadline is dd/MM/yyyy.
type ShopForm struct {
	Course   string  `json:"course" validate:"notblank"`
	Name     string  `json:"name" validate:"notblank"`
	Price    float64 `json:"price" validate:"gt=0"`
	URL      string  `json:"url" validate:"required,url"`
	Deadline string  `json:"deadline" validate:"required,datetime=02/01/2006"`
}

func (f ShopForm) Validate() error { return validate.Struct(f) }

// AnnouncementForm is one of the five announcement kinds. Each kind only
// carries the fields it displays.
type AnnouncementForm interface {
	Kind() portal.Kind
}

type AppManagementForm struct {
	Description string `json:"description" validate:"notblank"`
}

type ManualUpdateForm struct {
	Description string `json:"description" validate:"notblank"`
	CourseCode  string `json:"course" validate:"omitempty,max=20"`
	Attachment  *File  `json:"-"`
}

type ClassUpdateForm struct {
	Description string `json:"description" validate:"notblank"`
	CourseCode  string `json:"course" validate:"omitempty,max=20"`
	Venue       string `json:"venue"`
}

type SchoolAnnouncementForm struct {
	Description string `json:"description" validate:"notblank"`
}

type SpecialAnnouncementForm struct {
	Description string `json:"description" validate:"notblank"`
}

func (AppManagementForm) Kind() portal.Kind       { return portal.AppManagement }
func (ManualUpdateForm) Kind() portal.Kind        { return portal.ManualUpdate }
func (ClassUpdateForm) Kind() portal.Kind         { return portal.ClassUpdate }
func (SchoolAnnouncementForm) Kind() portal.Kind  { return portal.SchoolAnnouncement }
func (SpecialAnnouncementForm) Kind() portal.Kind { return portal.SpecialAnnouncement }

// NewAnnouncementForm returns an empty form for kind. An empty kind selects Class Update.
func NewAnnouncementForm(kind string) (AnnouncementForm, error) {
	if kind == "" {
		kind = string(portal.ClassUpdate)
	}
	k, err := portal.ParseKind(kind)
	if err != nil {
		return nil, apperr.Invalid(err.Error(), "kind")
	}
	switch k {
	case portal.AppManagement:
		return &AppManagementForm{}, nil
	case portal.ManualUpdate:
		return &ManualUpdateForm{}, nil
	case portal.ClassUpdate:
		return &ClassUpdateForm{}, nil
	case portal.SchoolAnnouncement:
		return &SchoolAnnouncementForm{}, nil
	default:
		return &SpecialAnnouncementForm{}, nil
	}
}

// announcementInput maps a form to the create-mutation arguments. attachment
// is the storage reference of the uploaded file, if any.
func announcementInput(form AnnouncementForm, attachment string) (portal.AnnouncementInput, error) {
	in := portal.AnnouncementInput{Kind: string(form.Kind())}
	switch f := form.(type) {
	case *AppManagementForm:
		in.Description = f.Description
	case *ManualUpdateForm:
		in.Description, in.CourseCode, in.Attachment = f.Description, f.CourseCode, attachment
	case *ClassUpdateForm:
		in.Description, in.CourseCode, in.Venue = f.Description, f.CourseCode, f.Venue
	case *SchoolAnnouncementForm:
		in.Description = f.Description
	case *SpecialAnnouncementForm:
		in.Description = f.Description
	default:
		return in, errors.Errorf("unsupported announcement form %T", form)
	}
	return in, nil
}

func validateForm(form AnnouncementForm) error {
	if form == nil {
		return apperr.Invalid("announcement kind is required", "kind")
	}
	return validate.Struct(form)
}

func attachmentOf(form AnnouncementForm) *File {
	if f, ok := form.(*ManualUpdateForm); ok {
		return f.Attachment
	}
	return nil
}
