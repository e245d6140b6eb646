package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/openlms/attempt-service/internal/errors"
	"github.com/openlms/attempt-service/internal/models"
)

var optionKeyPattern = regexp.MustCompile(`^option[0-9]+$`)

// Validator wraps go-playground/validator with our custom rules and converts
// failures into the shared ValidationErrors type.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	RegisterCustomValidators(v)
	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return apperrors.ToValidationErrors(err)
		}
		return err
	}
	return nil
}

// Custom validation functions

func ValidateAssessmentType(fl validator.FieldLevel) bool {
	validTypes := []models.AssessmentType{
		models.TypeChoices,
		models.TypeEssay,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func ValidateOptionKey(fl validator.FieldLevel) bool {
	return optionKeyPattern.MatchString(fl.Field().String())
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("assessment_type", ValidateAssessmentType)
	validate.RegisterValidation("option_key", ValidateOptionKey)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
