package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sspace/internal/compiler"
	"github.com/roach88/sspace/ir"
	"github.com/roach88/sspace/space"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Dimensions int                        `json:"dimensions,omitempty"`
	Variables  int                        `json:"variables,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definition>",
		Short: "Validate a space definition",
		Long: `Validate a space definition without sampling it.

Accepts a JSON, YAML or CUE file, or a directory holding one CUE package.
Checks the document schema, distribution parameters, condition references,
forbid scope and activation cycles. Every problem found is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	doc, err := LoadDocument(path)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			return formatter.CommandError(ErrCodeGeneric, err.Error())
		}
		if isCommandLoadError(loadErr.Code) {
			return formatter.CommandError(loadErr.Code, loadErr.Message)
		}
		return outputValidationErrors(formatter, []compiler.ValidationError{{
			Field:   "load",
			Message: loadErr.Error(),
			Code:    loadErr.Code,
		}})
	}

	formatter.VerboseLog("Loaded %d dimension(s) from %s", len(doc.Dimensions), path)

	validationErrors := ValidateDocument(doc)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, doc)
}

// ValidateDocument runs the document checks and, when they pass, builds the
// space and validates it. Returns every error found.
func ValidateDocument(doc *ir.Document) []compiler.ValidationError {
	if errs := compiler.Validate(doc); len(errs) > 0 {
		return errs
	}

	s, err := space.Deserialize(doc)
	if err != nil {
		return spaceValidationErrors(err)
	}
	if err := s.Validate(); err != nil {
		return spaceValidationErrors(err)
	}
	return nil
}

// spaceValidationErrors splits a (possibly joined) space error into one
// ValidationError per cause.
func spaceValidationErrors(err error) []compiler.ValidationError {
	causes := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		causes = joined.Unwrap()
	}

	out := make([]compiler.ValidationError, 0, len(causes))
	for _, cause := range causes {
		ve := compiler.ValidationError{
			Field:   "space",
			Message: cause.Error(),
			Code:    ErrCodeSpaceInvalid,
		}
		var se *space.SerializationError
		if errors.As(cause, &se) {
			ve.Code = ErrCodeDecodeFailed
			ve.Field = se.Path
			ve.Message = se.Err.Error()
		}
		// Serialization errors may wrap the configuration error that caused them.
		var ce *space.ConfigurationError
		if errors.As(cause, &ce) {
			ve.Code = string(ce.Code)
			ve.Message = ce.Message
			if se == nil && ce.Dimension != "" {
				ve.Field = ir.FieldPath("space", ce.Dimension)
			}
		}
		out = append(out, ve)
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, doc *ir.Document) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:      true,
			Dimensions: len(doc.Dimensions),
			Variables:  len(doc.Variables),
		}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Space valid: %d dimension(s), %d variable(s)\n",
		len(doc.Dimensions), len(doc.Variables))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		if err := formatter.Report(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
