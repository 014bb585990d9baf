package api

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yakoovad/tabletop-hub/internal/service"
)

// ProcessRequest runs the steps in order and stops at the first error.
func ProcessRequest[T any](e echo.Context, req *T, steps ...func(echo.Context, *T) error) error {
	for _, step := range steps {
		if err := step(e, req); err != nil {
			return err
		}
	}
	return nil
}

func bindBody[T any](e echo.Context, req *T) error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid request body")
	}
	return nil
}

func validateBody[T any](e echo.Context, req *T) error {
	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func decodeRequest[T any](e echo.Context, req *T) error {
	return ProcessRequest(e, req, bindBody[T], validateBody[T])
}

// pathID reads a positive numeric path parameter.
func pathID(e echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(e.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.NewError(service.ErrorCodeInvalidBody, "invalid "+name)
	}
	return id, nil
}
