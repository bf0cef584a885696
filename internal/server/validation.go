package server

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{4,6}$`)
)

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so errors line up with the form fields
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(fl.Field().String())
	})

	return validate
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "phone":
		return "Enter a valid phone number"
	case "otp":
		return "Enter the code from the email"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "eqfield":
		return "Passwords do not match"
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be %s or more", fe.Param())
	default:
		return "Invalid value"
	}
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

// bindForm reads a JSON or form body into req and runs the superficial format
// checks. On failure the screen is re-rendered with inline errors and false is
// returned.
func (s *Server) bindForm(c *gin.Context, screen string, data any, req any) bool {
	if err := c.ShouldBind(req); err != nil {
		s.logger.Debug().Err(err).Str("screen", screen).Msg("Invalid request body")
		renderInvalid(c, screen, data, map[string]string{"form": "Invalid request body"})
		return false
	}

	if err := s.validator.Struct(req); err != nil {
		renderInvalid(c, screen, data, fieldErrors(err))
		return false
	}
	return true
}
