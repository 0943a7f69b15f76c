package application

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// fieldErrors converts validator failures into a ValidationError carrying message.
func fieldErrors(err error, message string, names map[string]string) *ValidationError {
	vErr := newValidationError(message)
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return vErr
	}
	for _, fe := range errs {
		field := fe.Field()
		if name, ok := names[field]; ok {
			field = name
		}
		vErr.add(field, fe.Tag())
	}
	return vErr
}
