package portal

import (
	"time"

	"classportal/internal/listview"
)

// Descriptors configure the shared list view for each resource.

func AnnouncementDescriptor(pageSize int) listview.Descriptor[Announcement] {
	return listview.Descriptor[Announcement]{
		Name:     string(Announcements),
		PageSize: pageSize,
		Columns: []listview.Column{
			{Key: "title", Label: "Type"},
			{Key: "description", Label: "Description"},
			{Key: "courseCode", Label: "Course"},
			{Key: "venue", Label: "Venue"},
			{Key: "createdAt", Label: "Date Posted"},
		},
		Text:    func(a Announcement) []string { return listview.Field(a.Title) },
		Created: func(a Announcement) time.Time { return a.CreatedAt },
		Category: func(a Announcement) string {
			if a.CourseCode == nil {
				return ""
			}
			return *a.CourseCode
		},
	}
}

func AssignmentDescriptor(pageSize int) listview.Descriptor[Assignment] {
	return listview.Descriptor[Assignment]{
		Name:     string(Assignments),
		PageSize: pageSize,
		Columns: []listview.Column{
			{Key: "courseCode", Label: "Course"},
			{Key: "questions", Label: "Questions"},
			{Key: "createdAt", Label: "Date Posted"},
		},
		Text:     func(a Assignment) []string { return a.Questions },
		Created:  func(a Assignment) time.Time { return a.CreatedAt },
		Category: func(a Assignment) string { return a.CourseCode },
	}
}

func NoteDescriptor(pageSize int) listview.Descriptor[Note] {
	return listview.Descriptor[Note]{
		Name:     string(Notes),
		PageSize: pageSize,
		Columns: []listview.Column{
			{Key: "title", Label: "Title"},
			{Key: "courseCode", Label: "Course"},
			{Key: "imageUrls", Label: "Pages"},
			{Key: "createdAt", Label: "Date Posted"},
		},
		Text:     func(n Note) []string { return []string{n.Title} },
		Created:  func(n Note) time.Time { return n.CreatedAt },
		Category: func(n Note) string { return n.CourseCode },
	}
}

// CourseDescriptor has no date facet: courses carry no posting date.
func CourseDescriptor(pageSize int) listview.Descriptor[Course] {
	return listview.Descriptor[Course]{
		Name:     string(Courses),
		PageSize: pageSize,
		Columns: []listview.Column{
			{Key: "course", Label: "Course"},
			{Key: "unit", Label: "Unit"},
		},
		Text:     func(c Course) []string { return []string{c.CourseCode} },
		Category: func(c Course) string { return c.CourseCode },
	}
}

func ShopDescriptor(pageSize int) listview.Descriptor[ShopItem] {
	return listview.Descriptor[ShopItem]{
		Name:     string(Shop),
		PageSize: pageSize,
		Columns: []listview.Column{
			{Key: "name", Label: "Name"},
			{Key: "course", Label: "Course"},
			{Key: "price", Label: "Price"},
			{Key: "deadline", Label: "Deadline"},
			{Key: "url", Label: "Link"},
		},
		Text:     func(s ShopItem) []string { return []string{s.Name} },
		Created:  func(s ShopItem) time.Time { return s.CreatedAt },
		Category: func(s ShopItem) string { return s.Course },
	}
}
