package dashboard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"pulse/internal/filters"
	pkgerrors "pulse/pkg/errors"
)

// RegisterValidators adds the period and timebucket tags to the validator
// gin binds requests with.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	return registerTags(v)
}

func registerTags(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)

	if err := v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return filters.IsPeriodValid(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("timebucket", func(fl validator.FieldLevel) bool {
		return filters.IsTimeBucketValid(fl.Field().String())
	})
}

// fieldName reports fields by their form or json name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

var tagMessages = map[string]string{
	"required":   "%s is required",
	"period":     "%s must be one of custom, today, yesterday, 1d, 7d, 4w, 3M, 12M, 24M",
	"timebucket": "%s must be one of hour, day, week, month",
}

// bindingError converts a gin binding failure into a validation error
// naming the offending fields.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.ErrValidation.WithCause(err).WithMessage(err.Error())
	}

	appErr := pkgerrors.ErrValidation.WithCause(err)
	for i, fe := range fieldErrs {
		msg := fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
		if tmpl, ok := tagMessages[fe.Tag()]; ok {
			msg = fmt.Sprintf(tmpl, fe.Field())
		}
		if i == 0 {
			appErr = appErr.WithMessage(msg)
		}
		appErr = appErr.WithDetail(fe.Field(), msg)
	}
	return appErr
}
