package portal

import (
	"time"

	"classportal/internal/store"
)

// Resource names a portal collection. It doubles as the live topic.
type Resource string

const (
	Announcements Resource = "announcements"
	Assignments   Resource = "assignments"
	Notes         Resource = "notes"
	Courses       Resource = "courses"
	Shop          Resource = "shop"
)

// Announcement is a class notice. Title holds the announcement kind.
type Announcement struct {
	ID          string    `json:"id" db:"id"`
	Title       *string   `json:"title,omitempty" db:"title"`
	Description *string   `json:"description,omitempty" db:"description"`
	CourseCode  *string   `json:"courseCode,omitempty" db:"course_code"`
	Venue       *string   `json:"venue,omitempty" db:"venue"`
	Attachment  *string   `json:"attachment,omitempty" db:"attachment"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Assignment is an ordered list of questions for a course.
type Assignment struct {
	ID         string           `json:"id" db:"id"`
	Title      string           `json:"title,omitempty" db:"title"`
	CourseCode string           `json:"courseCode" db:"course_code"`
	Questions  store.StringList `json:"questions" db:"questions"`
	CreatedAt  time.Time        `json:"createdAt" db:"created_at"`
}

// Note is a titled set of page images for a course.
type Note struct {
	ID         string           `json:"id" db:"id"`
	Title      string           `json:"title" db:"title"`
	CourseCode string           `json:"courseCode" db:"course_code"`
	ImageURLs  store.StringList `json:"imageUrls" db:"image_urls"`
	CreatedAt  time.Time        `json:"createdAt" db:"created_at"`
}

// Course is a catalogue entry.
type Course struct {
	ID         string    `json:"id" db:"id"`
	CourseCode string    `json:"course" db:"course_code"`
	Unit       int       `json:"unit" db:"unit"`
	CreatedAt  time.Time `json:"-" db:"created_at"`
}

// ShopItem is a study manual offered for sale until its deadline.
type ShopItem struct {
	ID        string    `json:"id" db:"id"`
	Course    string    `json:"course" db:"course"`
	Name      string    `json:"name" db:"name"`
	Price     float64   `json:"price" db:"price"`
	URL       string    `json:"url" db:"url"`
	Deadline  string    `json:"deadline" db:"deadline"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
