package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/scheduler-api/internal/schedule"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

// Validator checks request structs and reports every failing field.
type Validator interface {
	Validate(obj interface{}) error
}

type structValidator struct {
	v        *validator.Validate
	messages map[string]string
}

// New returns a validator that names fields after their json tags and knows
// the rfc3339 and clock tags.
func New() Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return schedule.ValidClock(fl.Field().String())
	})

	return &structValidator{
		v: v,
		messages: map[string]string{
			"required": "is required",
			"uuid":     "must be a valid UUID",
			"rfc3339":  "must be a valid ISO 8601 date-time",
			"clock":    "must be a time of day in HH:MM format",
		},
	}
}

// Validate returns nil or an *errors.AppError with code ErrValidation
// listing each failing field once.
func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Internal(err)
	}

	seen := make(map[string]bool, len(verrs))
	fields := make([]errors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		name := fieldPath(fe)
		if seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, errors.FieldError{Field: name, Message: s.message(fe)})
	}
	return errors.Validation(fields...)
}

func (s *structValidator) message(fe validator.FieldError) string {
	if msg, ok := s.messages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// fieldPath drops the root struct name from the namespace, so nested fields
// read as "working_hours.start".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
