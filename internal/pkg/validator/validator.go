package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Currency validation (ISO 4217 codes we settle in)
	validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		currency := strings.ToUpper(fl.Field().String())
		validCurrencies := []string{"TRY", "USD", "EUR", "GBP", ""}
		for _, c := range validCurrencies {
			if currency == c {
				return true
			}
		}
		return false
	})

	// Decimal amount validation (positive number with at most 2 fraction digits)
	validate.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		raw := strings.TrimSpace(fl.Field().String())
		if raw == "" || strings.HasPrefix(raw, "-") {
			return false
		}
		whole, frac, hasFrac := strings.Cut(raw, ".")
		if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
			return false
		}
		for _, r := range whole + frac {
			if r < '0' || r > '9' {
				return false
			}
		}
		return whole != strings.Repeat("0", len(whole)) || (hasFrac && frac != strings.Repeat("0", len(frac)))
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "url":
			errors[field] = "Invalid URL format"
		case "currency":
			errors[field] = "Invalid currency. Must be: TRY, USD, EUR, or GBP"
		case "amount":
			errors[field] = "Invalid amount. Must be a positive decimal with at most 2 fraction digits"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
