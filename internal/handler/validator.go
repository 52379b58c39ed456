package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// CustomValidator plugs go-playground/validator into echo.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate returns an InvalidArgument service error naming the first
// failing field.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return service.InvalidArgument("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return service.InvalidArgument("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return service.InvalidArgument("%s", err.Error())
}
