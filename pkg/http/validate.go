package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// newValidator reports fields by the name they were bound from.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "param", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

var messages = map[string]string{
	"required": "%s is required",
	"oneof":    "%s must be one of: %s",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be at least %s",
	"lt":       "%s must be less than %s",
	"lte":      "%s must be at most %s",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
}

// ReadAndValidateRequest binds path and query parameters into req, fills
// defaults for what was not sent, and validates the result.
// Any failure is returned as ValidationErrors.
func ReadAndValidateRequest(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return ValidationErrors{{Code: CodeBadRequest, Message: fmt.Sprint(he.Message)}}
		}
		return ValidationErrors{{Code: CodeBadRequest, Message: err.Error()}}
	}
	if err := defaults.Set(req); err != nil {
		return ValidationErrors{{Code: CodeBadRequest, Message: err.Error()}}
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return ValidationErrors{{Code: CodeBadRequest, Message: err.Error()}}
		}
		out := make(ValidationErrors, 0, len(ves))
		for _, fe := range ves {
			out = append(out, fieldError(fe))
		}
		return out
	}
	return nil
}

func fieldError(fe validator.FieldError) FieldError {
	out := FieldError{
		Code:  "ERR_" + strings.ToUpper(fe.Tag()),
		Field: fe.Field(),
	}
	param := fe.Param()
	if fe.Tag() == "oneof" {
		param = strings.ReplaceAll(param, " ", ", ")
		out.Params = map[string]interface{}{"options": strings.Fields(fe.Param())}
	} else if param != "" {
		out.Params = map[string]interface{}{"value": param}
	}
	if tmpl, ok := messages[fe.Tag()]; ok {
		if strings.Count(tmpl, "%s") == 1 {
			out.Message = fmt.Sprintf(tmpl, fe.Field())
		} else {
			out.Message = fmt.Sprintf(tmpl, fe.Field(), param)
		}
	} else {
		out.Message = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	return out
}
