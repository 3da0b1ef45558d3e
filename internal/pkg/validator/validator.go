package validator

import (
	"github.com/go-playground/validator/v10"

	"rentals/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("property_type", func(fl validator.FieldLevel) bool {
		_, err := domain.ParsePropertyType(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("gender_policy", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseGender(fl.Field().String())
		return err == nil
	})
}

// Validate struct fields. Returns nil when the struct is valid, otherwise field -> failed tag.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string, len(verrs))
	for _, err := range verrs {
		errors[err.Field()] = err.Tag()
	}
	return errors
}
