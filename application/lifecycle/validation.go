package lifecycle

import (
	"errors"

	"github.com/go-playground/validator/v10"

	derrors "github.com/breakglass-dev/breakglass/domain/errors"
)

// validate is a package-level singleton; constructing a validator per call
// is expensive.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs tag validation and converts the first failure into the
// domain's ValidationError type.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &derrors.ValidationError{
			Field:  fe.Field(),
			Reason: "failed " + fe.Tag() + " constraint",
			Err:    err,
		}
	}
	return &derrors.ValidationError{Err: err}
}
