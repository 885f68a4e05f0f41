package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/marketplace-session/internal/navigation"
	apperrors "github.com/spec-kit/marketplace-session/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	// localpath accepts absolute paths on the current origin only.
	_ = v.RegisterValidation("localpath", func(fl validator.FieldLevel) bool {
		return navigation.IsLocalPath(fl.Field().String())
	})
	return v
}

// Validate checks req against its validate tags and reports failures as a
// validation DomainError keyed by field name.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInternalError(err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = fmt.Sprintf("%s is required", fe.Field())
		case "localpath":
			details[fe.Field()] = fmt.Sprintf("%s must be a local absolute path", fe.Field())
		default:
			details[fe.Field()] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	return apperrors.NewValidationError("invalid request", details)
}
