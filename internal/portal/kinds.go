package portal

import "github.com/pkg/errors"

// Kind is the announcement type. Each kind carries its own set of fields.
type Kind string

const (
	AppManagement       Kind = "App Management"
	ManualUpdate        Kind = "Manual Update"
	ClassUpdate         Kind = "Class Update"
	SchoolAnnouncement  Kind = "School Announcement"
	SpecialAnnouncement Kind = "Special Announcement"
)

// Kinds lists every announcement kind in display order.
var Kinds = []Kind{AppManagement, ManualUpdate, ClassUpdate, SchoolAnnouncement, SpecialAnnouncement}

// Fields lists the optional fields a kind carries besides the description.
type Fields struct {
	Course     bool
	Venue      bool
	Attachment bool
}

// ParseKind validates s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Errorf("unknown announcement kind %q", s)
}

// Fields reports which optional fields k carries.
func (k Kind) Fields() Fields {
	switch k {
	case ManualUpdate:
		return Fields{Course: true, Attachment: true}
	case ClassUpdate:
		return Fields{Course: true, Venue: true}
	default:
		return Fields{}
	}
}
