// Package validate holds the shared struct validator and its English translations.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"classportal/internal/apperr"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	notBlankTag  = "notblank"
	notBlankText = "{0} must not be blank"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

func init() {
	Validate = validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// JSON names in error messages, not Go field names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlank)
	RegisterTranslation(notBlankTag, notBlankText)
	RegisterTranslation(requiredTag, requiredText, true)
}

// Struct validates s and converts failures into an *apperr.ValidationError.
func Struct(s interface{}) error {
	if err := Validate.Struct(s); err != nil {
		return apperr.FromValidator(err, Translator)
	}
	return nil
}

// RegisterTranslation registers a message for a validation tag. {0} is the field name.
func RegisterTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// CleanString trims surrounding whitespace and optionally lowers s.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}
