// Package inputval validates decoded request bodies with struct tags and
// turns failures into messages fit for API clients.
package inputval

import (
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

// saudiMobile is a Saudi mobile number after stripping the country code.
var saudiMobile = regexp.MustCompile(`^5\d{8}$`)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if l := f.Tag.Get("label"); l != "" {
				return l
			}
			return f.Name
		})
		_ = v.RegisterValidation("notiftype", func(fl validator.FieldLevel) bool {
			return models.NotificationType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("samobile", func(fl validator.FieldLevel) bool {
			return saudiMobile.MatchString(fl.Field().String())
		})
	})
	return v
}

// Result holds the messages produced by Validate.
type Result struct {
	errs []string
}

// HasErrors reports whether validation failed.
func (r *Result) HasErrors() bool { return r != nil && len(r.errs) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if !r.HasErrors() {
		return ""
	}
	return r.errs[0]
}

// All returns every message.
func (r *Result) All() []string {
	if r == nil {
		return nil
	}
	return r.errs
}

// Validate checks s against its validate tags.
func Validate(s any) *Result {
	err := instance().Struct(s)
	if err == nil {
		return &Result{}
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &Result{errs: []string{err.Error()}}
	}
	out := &Result{errs: make([]string, 0, len(verrs))}
	for _, fe := range verrs {
		out.errs = append(out.errs, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return name + " is required."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", name, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters.", name, fe.Param())
	case "email":
		return name + " must be a valid email address."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "numeric":
		return name + " must contain only digits."
	case "notiftype":
		return name + " is not a known notification type."
	case "samobile":
		return name + " must be a Saudi mobile number (5xxxxxxxx)."
	case "dive":
		return name + " contains an invalid value."
	}
	return name + " is invalid."
}

// IsValidEmail reports whether s is a bare address (no display name).
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	local, domain := s[:at], s[at+1:]
	for _, part := range []string{local, domain} {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") || strings.Contains(part, "..") {
			return false
		}
	}
	return true
}

// IsValidSaudiMobile reports whether digits is a Saudi mobile number
// without its country code.
func IsValidSaudiMobile(digits string) bool {
	return saudiMobile.MatchString(digits)
}
