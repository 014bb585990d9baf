package service

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateInput(in any) error {
	if err := validate.Struct(in); err != nil {
		return NewError(ErrorCodeInvalidBody, errors.Wrap(err, "validation failed").Error())
	}
	return nil
}
