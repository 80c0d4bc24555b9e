package apperr

import (
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ValidationError reports per-field problems found before any side effect happened.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+": "+e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// Invalid builds a ValidationError with a single message and optional field.
func Invalid(msg string, field ...string) *ValidationError {
	ve := &ValidationError{Message: msg}
	if len(field) > 0 {
		ve.Fields = map[string]string{field[0]: msg}
	}
	return ve
}

// FromValidator converts validator errors into a ValidationError with translated messages.
// Any other error is returned unchanged.
func FromValidator(err error, trans ut.Translator) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if ns := fe.Namespace(); strings.Contains(ns, ".") {
			name = ns[strings.Index(ns, ".")+1:]
		}
		fields[name] = fe.Translate(trans)
	}
	return &ValidationError{Fields: fields}
}
