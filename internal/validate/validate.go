// Package validate checks operation inputs declared with `validate` struct tags.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"trusthub.org/internal/apperr"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Report JSON names so messages match the request payload.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return v
}

// Struct validates s and converts the first failure into an apperr validation error.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid input")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation("missing required field: %s", fe.Field())
	case "email":
		return apperr.Validation("%s must be a valid email address", fe.Field())
	case "min":
		return apperr.Validation("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return apperr.Validation("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return apperr.Validation("invalid value for field: %s", fe.Field())
	}
}
