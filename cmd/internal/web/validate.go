package web

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	loginPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]*$`)
	emailPattern   = regexp.MustCompile(`^[\w.+-]+@([\w-]+\.)+[\w-]{2,}$`)
	websitePattern = regexp.MustCompile(`^https://([a-zA-Z0-9_-]+\.)+[a-zA-Z0-9_-]+(/[a-zA-Z0-9_-]+)*/?$`)
)

// Like statuses accepted by the like-status endpoints.
const likeStatuses = "None Like Dislike"

// Validator checks decoded request bodies against their `validate` tags and
// reports failures by JSON field name.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the custom rules used by the request types:
// loginchars, emailaddr, website and likestatus.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	rules := map[string]*regexp.Regexp{
		"loginchars": loginPattern,
		"emailaddr":  emailPattern,
		"website":    websitePattern,
	}
	for tag, re := range rules {
		if err := v.RegisterValidation(tag, matches(re)); err != nil {
			panic(fmt.Sprintf("web: register %s: %v", tag, err))
		}
	}
	if err := v.RegisterValidation("likestatus", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "None" || s == "Like" || s == "Dislike"
	}); err != nil {
		panic(fmt.Sprintf("web: register likestatus: %v", err))
	}
	return &Validator{v: v}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate returns one FieldError per failing field, in declaration order.
func (v *Validator) Validate(s any) []FieldError {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Message: "invalid request"}}
	}
	seen := make(map[string]bool, len(ve))
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		field := fe.Field()
		if seen[field] {
			continue
		}
		seen[field] = true
		out = append(out, FieldError{Message: message(fe), Field: field})
	}
	return out
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
	case "loginchars":
		return f + " may contain only letters, digits, _ and -"
	case "emailaddr":
		return f + " must be a valid email"
	case "website":
		return f + " must be a valid https URL"
	case "likestatus":
		return f + " must be one of: " + likeStatuses
	}
	return f + " is invalid"
}

// Bind decodes the body into dst, trims its string fields and validates it.
// On failure it writes the 400 response and returns false.
func (v *Validator) Bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := DecodeJSON(w, r, MaxBodyBytes, dst); err != nil {
		WriteFieldErrors(w, FieldError{Message: "invalid JSON body", Field: "body"})
		return false
	}
	trimStrings(dst)
	if errs := v.Validate(dst); len(errs) > 0 {
		WriteFieldErrors(w, errs...)
		return false
	}
	return true
}

// trimStrings trims every settable top-level string field of *struct.
func trimStrings(dst any) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}
