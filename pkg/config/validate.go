package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cuemby/envgate/pkg/types"
	"github.com/go-playground/validator/v10"
)

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("envname", func(fl validator.FieldLevel) bool {
		return types.ValidName(fl.Field().String())
	})
	_ = v.RegisterValidation("varname", func(fl validator.FieldLevel) bool {
		return variableNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateEnvironment checks the format of a single environment definition
func ValidateEnvironment(env *types.Environment) []FieldError {
	err := validate.Struct(env)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Entity: env.Name, Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Entity:  env.Name,
			Field:   fieldPath(fe),
			Message: fieldMessage(fe),
		})
	}
	return fields
}

// fieldPath strips the struct name: "Environment.Variables[0].Name" -> "variables[0].name"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must not be blank", fieldPath(fe))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fieldPath(fe), fe.Param())
	case "envname":
		return fmt.Sprintf("Invalid name '%v'. This must be alphanumeric and can contain underscores, hyphens and periods (however, it cannot start with a period).", fe.Value())
	case "varname":
		return fmt.Sprintf("Invalid environment variable name '%v'", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fieldPath(fe), fe.Tag())
	}
}

// Validate checks the structural invariants of a snapshot: well-formed
// names and variables, unique environment names, known pipelines, and each
// pipeline owned by at most one environment.
func Validate(s *Snapshot) error {
	var fields []FieldError

	known := make(map[string]bool, len(s.pipelines))
	for _, p := range s.pipelines {
		known[types.NameKey(p)] = true
	}

	seen := make(map[string]bool, len(s.local))
	for _, env := range s.local {
		key := types.NameKey(env.Name)
		if seen[key] {
			fields = append(fields, FieldError{Entity: env.Name, Field: "name",
				Message: fmt.Sprintf("Duplicate environment name '%s'", env.Name)})
		}
		seen[key] = true
		fields = append(fields, validatePart(env)...)
	}
	for _, repo := range s.repos {
		for _, part := range repo.envs {
			fields = append(fields, validatePart(part)...)
		}
	}

	owners := make(map[string]string)
	for _, env := range s.merged {
		for _, p := range env.Pipelines {
			key := types.NameKey(p)
			if owner, ok := owners[key]; ok {
				fields = append(fields, FieldError{Entity: env.Name, Field: "pipelines",
					Message: fmt.Sprintf("Associating pipeline(s) which is already part of %s environment: %s", owner, p)})
				continue
			}
			owners[key] = env.Name
			if !known[key] {
				fields = append(fields, FieldError{Entity: env.Name, Field: "pipelines",
					Message: fmt.Sprintf("Environment '%s' refers to an unknown pipeline '%s'", env.Name, p)})
			}
		}
	}

	if len(fields) > 0 {
		return NewValidationError("Validation failed", fields...)
	}
	return nil
}

func validatePart(env *types.Environment) []FieldError {
	fields := ValidateEnvironment(env)

	vars := make(map[string]bool, len(env.Variables))
	for _, v := range env.Variables {
		if vars[v.Name] {
			fields = append(fields, FieldError{Entity: env.Name, Field: "variables",
				Message: fmt.Sprintf("Environment variable name '%s' is not unique for environment '%s'", v.Name, env.Name)})
		}
		vars[v.Name] = true
	}
	return fields
}
