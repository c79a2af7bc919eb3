package ledger

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/invoicely/invoicely/internal/dates"
)

// NewValidator builds a validator that knows the ledger's custom tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("stored_date", func(fl validator.FieldLevel) bool {
		_, err := dates.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return Currency(fl.Field().String()).Supported()
	})
	return v
}

// Validate checks a write payload against the ledger rules.
func Validate(v *validator.Validate, inv NewInvoice) error {
	if err := v.Struct(inv); err != nil {
		return newValidationError(err)
	}
	return nil
}
