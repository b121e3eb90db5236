// Package nodeconfig decodes and validates node configuration maps.
package nodeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nodeflow/nodeflow/pkg/protocol"
)

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			if label := field.Tag.Get("label"); label != "" {
				return label
			}

			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		// registration only fails for an empty tag or nil func
		_ = validate.RegisterValidation("varname", func(fl validator.FieldLevel) bool {
			return variableNamePattern.MatchString(fl.Field().String())
		})
	})

	return validate
}

// ValidVariableName reports whether name can be used as a context key that templates can reach.
func ValidVariableName(name string) bool {
	return variableNamePattern.MatchString(name)
}

// Decode copies raw into out and validates it. node is the human name used in error
// messages, e.g. "HTTP Request". Every failure is a configuration error.
func Decode(node string, raw map[string]any, out any) error {
	if raw == nil {
		raw = map[string]any{}
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return protocol.Configuration("%s node: configuration is not serializable: %v", node, err)
	}

	if err := json.Unmarshal(encoded, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return protocol.Configuration("%s node: %s must be a %s", node, typeErr.Field, typeErr.Type.Kind())
		}

		return protocol.Configuration("%s node: invalid configuration: %v", node, err)
	}

	return Validate(node, out)
}

// Validate runs the struct's validate tags and reports the first violation.
func Validate(node string, cfg any) error {
	err := validatorInstance().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return protocol.Configuration("%s node: %v", node, err)
	}

	return protocol.Configuration("%s node: %s", node, describe(fieldErrors[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return field + " is missing"
	case "varname":
		return fmt.Sprintf("%s %q must start with a letter, underscore or $ and contain only letters, numbers, underscores or $", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
