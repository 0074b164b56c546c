package policy

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/expr-lang/expr"
	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

// Validate performs structural validation of a policy document.
// Returns an error describing all validation failures found.
func Validate(doc *Document) error {
	var errors []string

	if doc.Requires != "" {
		if _, err := semver.NewConstraint(doc.Requires); err != nil {
			errors = append(errors, fmt.Sprintf("requires %q is not a valid version constraint", doc.Requires))
		}
	}

	if doc.Defaults != nil {
		switch doc.Defaults.Unlisted {
		case "", string(permission.StatePrompt), string(permission.StateDenied):
		default:
			errors = append(errors, fmt.Sprintf("defaults.unlisted %q is invalid (must be prompt or denied)", doc.Defaults.Unlisted))
		}
	}

	for kind, section := range doc.Capabilities {
		if err := validateSection(kind, section); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("policy validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// validateSection validates one capability kind's configuration.
func validateSection(kind string, section Section) error {
	var errors []string

	if !permission.Name(kind).Valid() {
		return fmt.Errorf("unknown capability kind %q", kind)
	}

	if kind == string(permission.NameHrtime) {
		if section.Allow.List() != nil {
			errors = append(errors, "hrtime allow must be a boolean, not a list")
		}
		if len(section.Deny) > 0 {
			errors = append(errors, "hrtime does not take deny patterns")
		}
		if len(section.Rules) > 0 {
			errors = append(errors, "hrtime does not take rules")
		}
	}

	for i, entry := range section.Allow.List() {
		if entry == "" {
			errors = append(errors, fmt.Sprintf("allow entry %d is empty", i))
		}
	}
	for i, entry := range section.Deny {
		if entry == "" {
			errors = append(errors, fmt.Sprintf("deny entry %d is empty", i))
		}
	}

	for i, rule := range section.Rules {
		if err := validateRule(rule); err != nil {
			errors = append(errors, fmt.Sprintf("rule %d: %s", i, err.Error()))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("capability %s: %s", kind, strings.Join(errors, "; "))
	}

	return nil
}

// validateRule validates a single rule, including compiling its when
// clause against the rule environment.
func validateRule(rule Rule) error {
	var errors []string

	if rule.Pattern == "" {
		errors = append(errors, "pattern is required")
	}

	if rule.State == "" {
		errors = append(errors, "state is required")
	} else if err := permission.State(rule.State).Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("state %q is invalid", rule.State))
	}

	if rule.When != "" {
		if _, err := expr.Compile(rule.When, expr.Env(RuleEnv{}), expr.AsBool()); err != nil {
			errors = append(errors, fmt.Sprintf("when clause does not compile: %s", err.Error()))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// ValidateSchema validates raw policy YAML against the embedded JSON
// Schema. The schema catches shape errors (wrong types, unknown keys)
// before the document is decoded into Go structs.
func ValidateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if doc == nil {
		// Empty document; nothing to check.
		return nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("policy.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("failed to add policy schema resource: %w", err)
	}

	schema, err := compiler.Compile("policy.json")
	if err != nil {
		return fmt.Errorf("failed to compile policy schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return formatSchemaValidationError(validationErr)
		}
		return fmt.Errorf("policy validation failed: %w", err)
	}

	return nil
}

// formatSchemaValidationError formats a JSON Schema validation error into a readable message.
func formatSchemaValidationError(err *jsonschema.ValidationError) error {
	var messages []string

	var collectErrors func(*jsonschema.ValidationError)
	collectErrors = func(e *jsonschema.ValidationError) {
		if e.Message != "" {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}

		for _, cause := range e.Causes {
			collectErrors(cause)
		}
	}

	collectErrors(err)

	if len(messages) == 0 {
		return fmt.Errorf("policy validation failed")
	}

	return fmt.Errorf("policy validation failed:\n    - %s", strings.Join(messages, "\n    - "))
}
