package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	validation "github.com/nkiryanov/tipwallet/internal/service/validate"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("phone", validatePhone)
	_ = validate.RegisterValidation("pin", validatePin)
	_ = validate.RegisterValidation("tipid", validateTipID)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Phone with at least 10 digits
func validatePhone(fl validator.FieldLevel) bool {
	return validation.Phone(fl.Field().String()) == nil
}

// Pin of 4 to 6 digits
func validatePin(fl validator.FieldLevel) bool {
	return validation.Pin(fl.Field().String()) == nil
}

func validateTipID(fl validator.FieldLevel) bool {
	return validation.TipID(strings.ToUpper(fl.Field().String())) == nil
}
