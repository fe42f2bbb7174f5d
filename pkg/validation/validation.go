package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/TheYonk/robomonkey/pkg/errors"
)

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var msgs []string
	for _, e := range ve {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}

	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Validate validates multiple fields
func Validate(fields ...*Field) error {
	var validationErrors ValidationErrors
	for _, field := range fields {
		for _, validator := range field.Validators {
			if err := validator.Validate(field.Value); err != nil {
				validationErrors = append(validationErrors, ValidationError{
					Field:   field.Name,
					Message: err.Error(),
					Value:   field.Value,
				})

				break
			}
		}
	}

	if len(validationErrors) > 0 {
		return errors.New(validationErrors.Error()).
			WithCode(errors.CodeValidation).
			WithMetadata("fields", validationErrors)
	}

	return nil
}

// NewField creates a new field for validation
func NewField(name string, value any, validators ...Validator) *Field {
	return &Field{
		Name:       name,
		Value:      value,
		Validators: validators,
	}
}

// Common validators

// Required validates that a value is not empty
var Required = ValidatorFunc(func(value any) error {
	if value == nil {
		return fmt.Errorf("is required")
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("is required")
		}

	case []byte:
		if len(v) == 0 {
			return fmt.Errorf("is required")
		}

	// Numeric and boolean types are always considered present
	case int, int8, int16, int32, int64:
	case uint, uint8, uint16, uint32, uint64:
	case float32, float64:
	case bool:
	default:
		if fmt.Sprintf("%v", v) == "" {
			return fmt.Errorf("is required")
		}
	}

	return nil
})

// Min returns a validator that checks if a value is at least min
func Min(min float64) Validator {
	return ValidatorFunc(func(value any) error {
		switch v := value.(type) {
		case int:
			if float64(v) < min {
				return fmt.Errorf("must be at least %v", min)
			}

		case int64:
			if float64(v) < min {
				return fmt.Errorf("must be at least %v", min)
			}

		case float64:
			if v < min {
				return fmt.Errorf("must be at least %v", min)
			}

		case string:
			if float64(len(v)) < min {
				return fmt.Errorf("must be at least %v characters", min)
			}

		default:
			return fmt.Errorf("cannot apply min validation to type %T", value)
		}

		return nil
	})
}

// Max returns a validator that checks if a value is at most max
func Max(max float64) Validator {
	return ValidatorFunc(func(value any) error {
		switch v := value.(type) {
		case int:
			if float64(v) > max {
				return fmt.Errorf("must be at most %v", max)
			}

		case int64:
			if float64(v) > max {
				return fmt.Errorf("must be at most %v", max)
			}

		case float64:
			if v > max {
				return fmt.Errorf("must be at most %v", max)
			}

		case string:
			if float64(len(v)) > max {
				return fmt.Errorf("must be at most %v characters", max)
			}

		default:
			return fmt.Errorf("cannot apply max validation to type %T", value)
		}

		return nil
	})
}

// In returns a validator that checks if a value is in a list
func In(values ...any) Validator {
	return ValidatorFunc(func(value any) error {
		for _, v := range values {
			if value == v {
				return nil
			}
		}

		return fmt.Errorf("must be one of %v", values)
	})
}

// Pattern returns a validator that checks if a string matches a regex pattern
func Pattern(pattern string) Validator {
	regex := regexp.MustCompile(pattern)
	return ValidatorFunc(func(value any) error {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}

		if !regex.MatchString(str) {
			return fmt.Errorf("must match pattern %s", pattern)
		}

		return nil
	})
}

// RepoName validates a repository registration name
func RepoName() Validator {
	validPattern := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	return ValidatorFunc(func(value any) error {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}

		if len(str) < 1 || len(str) > 100 {
			return fmt.Errorf("must be between 1 and 100 characters")
		}

		if !validPattern.MatchString(str) {
			return fmt.Errorf(
				"can only contain letters, numbers, dot, underscore, and hyphen")
		}

		return nil
	})
}

// JobType validates a job type tag
func JobType() Validator {
	validPattern := regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	return ValidatorFunc(func(value any) error {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}

		if !validPattern.MatchString(str) {
			return fmt.Errorf("must be an upper-snake-case job type tag")
		}

		return nil
	})
}

// Priority validates a job priority value
func Priority() Validator {
	return ValidatorFunc(func(value any) error {
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("must be an integer")
		}

		if v < 1 || v > 10 {
			return fmt.Errorf("must be between 1 and 10")
		}

		return nil
	})
}

// RelPath validates a repository-relative file path
func RelPath() Validator {
	return ValidatorFunc(func(value any) error {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}

		if str == "" {
			return fmt.Errorf("is required")
		}

		if strings.HasPrefix(str, "/") {
			return fmt.Errorf("must be relative to the repository root")
		}

		clean := path.Clean(str)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("must not escape the repository root")
		}

		return nil
	})
}
