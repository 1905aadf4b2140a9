// Package validator checks workflow graphs for structural problems a
// successful Build does not rule out, and suggests fixes for them.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/amp-workflow/graph"
)

// ValidationResult contains the results of validating a workflow.
type ValidationResult struct {
	Valid       bool
	Errors      []ValidationError
	Warnings    []ValidationWarning
	Suggestions []Suggestion
}

// ValidationError represents a validation error with an optional fix.
type ValidationError struct {
	Code     string   // Error code like "UNREACHABLE_STATE", "SHADOWED_TRANSITION"
	Message  string   // Human-readable error message
	Location Location // Where the error occurred
	Fix      *Fix     // Optional auto-fix suggestion
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Code     string
	Message  string
	Location Location
	Fix      *Fix
}

// Suggestion provides improvement recommendations.
type Suggestion struct {
	Message string // Suggestion description
	Example string // YAML example showing the improvement
}

// Location identifies where an issue occurred.
type Location struct {
	File  string // Definition file path
	State string // State name if applicable
	Event string // Event name if applicable
}

// Validate runs the default rules and every registered rule.
func Validate(spec *graph.Spec) ValidationResult {
	return ValidateWithRules(spec, AllRules())
}

// ValidateFile loads a YAML definition and validates it.
func ValidateFile(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, false)
}

// ValidateFileStrict loads a YAML definition and validates it in strict mode.
func ValidateFileStrict(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, true)
}

// ValidateFileWithOptions loads a YAML definition and validates it. A
// definition that fails to build is reported as an invalid result, not as
// an error; only a file that cannot be read or parsed returns an error.
func ValidateFileWithOptions(path string, strict bool) (ValidationResult, error) {
	config, err := graph.ReadConfig(path)
	if err != nil {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{
					Code:     "CONFIG_LOAD_FAILED",
					Message:  fmt.Sprintf("Failed to load definition: %v", err),
					Location: Location{File: path},
				},
			},
		}, err
	}

	result := ValidateConfig(config, strict)

	for i := range result.Errors {
		if result.Errors[i].Location.File == "" {
			result.Errors[i].Location.File = path
		}
	}

	for i := range result.Warnings {
		if result.Warnings[i].Location.File == "" {
			result.Warnings[i].Location.File = path
		}
	}

	return result, nil
}

// ValidateConfig builds config and validates the result. Build failures
// become DEFINITION_ERROR entries.
func ValidateConfig(config *graph.Config, strict bool) ValidationResult {
	spec, err := config.Build()
	if err != nil {
		return ValidationResult{Valid: false, Errors: definitionErrors(err)}
	}

	if strict {
		return ValidateWithRulesStrict(spec, AllRules())
	}

	return Validate(spec)
}

// ValidateWithRules validates using custom rules.
func ValidateWithRules(spec *graph.Spec, rules []Rule) ValidationResult {
	var result ValidationResult

	result.Valid = true

	for _, rule := range rules {
		ruleResult := rule.Check(spec)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	result.Suggestions = generateSuggestions(spec)

	return result
}

// ValidateWithRulesStrict validates with strict mode (treats warnings as errors).
func ValidateWithRulesStrict(spec *graph.Spec, rules []Rule) ValidationResult {
	result := ValidateWithRules(spec, rules)

	for _, warning := range result.Warnings {
		result.Errors = append(result.Errors, ValidationError{
			Code:     warning.Code,
			Message:  warning.Message,
			Location: warning.Location,
			Fix:      warning.Fix,
		})
	}

	result.Warnings = nil

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

// definitionErrors splits a joined build error into one entry per cause.
func definitionErrors(err error) []ValidationError {
	var causes []error

	if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint
		causes = joined.Unwrap()
	} else {
		causes = []error{err}
	}

	out := make([]ValidationError, 0, len(causes))

	for _, cause := range causes {
		var loc Location

		var eventErr *graph.EventError
		if errors.As(cause, &eventErr) {
			loc = Location{State: eventErr.State, Event: eventErr.Event}
		}

		var targetErr *graph.TargetError
		if errors.As(cause, &targetErr) {
			loc = Location{State: targetErr.State, Event: targetErr.Event}
		}

		out = append(out, ValidationError{
			Code:     "DEFINITION_ERROR",
			Message:  cause.Error(),
			Location: loc,
		})
	}

	return out
}

// generateSuggestions provides general improvement suggestions.
func generateSuggestions(spec *graph.Spec) []Suggestion {
	var suggestions []Suggestion

	states := spec.States()

	if len(spec.Tags()) == 0 && len(states) > 3 { //nolint:mnd
		suggestions = append(suggestions, Suggestion{
			Message: "Consider tagging states so callers can query groups of states",
			Example: `states:
  - name: awaiting_review
    tags: [open, review]`,
		})
	}

	hasMeta := false

	for _, state := range states {
		if len(state.Meta()) > 0 {
			hasMeta = true

			break
		}
	}

	if !hasMeta && len(states) > 3 { //nolint:mnd
		suggestions = append(suggestions, Suggestion{
			Message: "Consider adding meta to document complex states",
			Example: `states:
  - name: being_reviewed
    meta:
      description: "An editor is reviewing the article"
      owner: "editorial"`,
		})
	}

	guarded := false

	for _, event := range spec.Events() {
		if len(event.Transitions()) > 1 {
			guarded = true

			break
		}
	}

	if guarded && len(spec.EventArgs()) == 0 {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider naming event arguments so guarded transitions can bind them",
			Example: `eventArgs: [actor, comment]`,
		})
	}

	return suggestions
}

// HasErrors returns true if the result has any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Fixes collects the fixes attached to errors and warnings.
func (r ValidationResult) Fixes() []*Fix {
	var fixes []*Fix

	for _, err := range r.Errors {
		if err.Fix != nil {
			fixes = append(fixes, err.Fix)
		}
	}

	for _, warn := range r.Warnings {
		if warn.Fix != nil {
			fixes = append(fixes, warn.Fix)
		}
	}

	return fixes
}

// String returns a human-readable summary of validation results.
func (r ValidationResult) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("✓ Workflow is valid\n")
	} else {
		sb.WriteString(fmt.Sprintf("✗ Workflow has %d error(s)\n", len(r.Errors)))
	}

	for _, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  [%s] %s%s\n", err.Code, err.Message, err.Location))

		if err.Fix != nil {
			sb.WriteString(fmt.Sprintf("    Fix: %s\n", err.Fix.Description))
		}
	}

	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d warning(s):\n", len(r.Warnings)))

		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  [%s] %s%s\n", warn.Code, warn.Message, warn.Location))
		}
	}

	if len(r.Suggestions) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d suggestion(s) for improvement\n", len(r.Suggestions)))
	}

	return sb.String()
}

func (l Location) String() string {
	switch {
	case l.State != "" && l.Event != "":
		return fmt.Sprintf(" (state: %s, event: %s)", l.State, l.Event)
	case l.State != "":
		return fmt.Sprintf(" (state: %s)", l.State)
	default:
		return ""
	}
}
