package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the validation engine with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all custom rules registered.
func New() *Validator {
	v := &Validator{validate: validator.New()}
	v.registerRules()
	return v
}

// ValidateStruct validates a struct by its validate tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidationError is one field-level validation failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

// ValidationErrors is the collection returned to handlers.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve))
	for i, e := range ve {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(messages, "; ")
}

// ToValidationErrors converts engine errors into the service error type.
func ToValidationErrors(err error) ValidationErrors {
	var result ValidationErrors
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			result = append(result, ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: messageForTag(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
		return result
	}
	return ValidationErrors{{Field: "", Message: err.Error(), Rule: "struct"}}
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "student_name":
		return "must be 1-50 characters"
	case "subject_code":
		return "must be a short lowercase code"
	case "answer_option":
		return "must be within the exam option range"
	case "min":
		return fmt.Sprintf("must have at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func (v *Validator) registerRules() {
	// Student display name (1-50 characters after trimming)
	v.validate.RegisterValidation("student_name", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return len(name) >= 1 && len(name) <= 50
	})

	// Subject codes are short lowercase identifiers
	v.validate.RegisterValidation("subject_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) < 1 || len(code) > 20 {
			return false
		}
		for _, r := range code {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
				return false
			}
		}
		return true
	})

	// Submitted answers are 0 (blank) through 5; the per-exam option count
	// is enforced in the service where the exam is known.
	v.validate.RegisterValidation("answer_option", func(fl validator.FieldLevel) bool {
		answer := fl.Field().Int()
		return answer >= 0 && answer <= 5
	})
}
