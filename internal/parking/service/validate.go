package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	ErrMissingCardUUID = errors.New("card_uuid is required")
	ErrMissingUsername = errors.New("username is required")
	ErrInvalidAction   = errors.New("action must be one of add, edit, delete")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Whitespace-only identifiers count as missing; anything else is kept verbatim.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// Report fields by their JSON name so errors match the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateBody maps the first failing field to its sentinel error.
func validateBody(body any) error {
	err := validate.Struct(body)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "card_uuid":
		return ErrMissingCardUUID
	case "username":
		return ErrMissingUsername
	case "action":
		return ErrInvalidAction
	default:
		return err
	}
}
