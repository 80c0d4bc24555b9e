// Package listview implements the filtered, paginated, role-gated list pattern
// shared by every portal resource screen.
package listview

import (
	"strings"
	"time"
)

// AllCategories matches every item, whether it appears in the criteria or on the item.
const AllCategories = "ALL"

// DateLayout is the civil date format accepted by the date facet.
const DateLayout = "2006-01-02"

// Criteria is the filter bag applied to a resource list. Empty fields do not filter.
type Criteria struct {
	Text     string `json:"text,omitempty"`
	Date     string `json:"date,omitempty"`
	Category string `json:"category,omitempty"`

	// Location is the viewer's timezone used for the date facet. Nil means UTC.
	Location *time.Location `json:"-"`
}

// IsZero reports whether c filters nothing.
func (c Criteria) IsZero() bool {
	return c.Text == "" && c.Date == "" && c.Category == ""
}

// Column describes one rendered column of a resource list.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Descriptor configures the list pattern for one resource type.
// Facets whose accessor is nil are ignored by Matches.
type Descriptor[T any] struct {
	Name     string
	PageSize int
	Columns  []Column

	// Text returns the candidate strings for the text facet. A nil or empty
	// result means the field is missing and the item does not match a non-empty text.
	Text func(T) []string
	// Created returns the item's creation time.
	Created func(T) time.Time
	// Category returns the item's category.
	Category func(T) string
}

// Field adapts an optional string to a Text accessor result.
func Field(s *string) []string {
	if s == nil {
		return nil
	}
	return []string{*s}
}

// Matches reports whether item satisfies the text, date and category clauses of c.
func Matches[T any](d Descriptor[T], item T, c Criteria) bool {
	return matchText(d, item, c.Text) && matchDate(d, item, c) && matchCategory(d, item, c.Category)
}

// Filter returns the items matching c, preserving their order.
func Filter[T any](d Descriptor[T], items []T, c Criteria) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Matches(d, it, c) {
			out = append(out, it)
		}
	}
	return out
}

func matchText[T any](d Descriptor[T], item T, text string) bool {
	if text == "" || d.Text == nil {
		return true
	}
	needle := strings.ToLower(text)
	for _, s := range d.Text(item) {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func matchDate[T any](d Descriptor[T], item T, c Criteria) bool {
	if c.Date == "" || d.Created == nil {
		return true
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return d.Created(item).In(loc).Format(DateLayout) == c.Date
}

func matchCategory[T any](d Descriptor[T], item T, category string) bool {
	if category == "" || category == AllCategories || d.Category == nil {
		return true
	}
	own := d.Category(item)
	return own == category || own == AllCategories
}
