package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/sspace/internal/compiler"
	"github.com/roach88/sspace/ir"
)

// LoadError represents an error that occurred while loading a definition.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDocument loads a space definition from a JSON, YAML or CUE file, or
// from a directory of CUE files. Every failure is a *LoadError.
func LoadDocument(path string) (*ir.Document, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definition not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing definition: %v", err)}
	}

	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	} else if compiler.FormatOf(path) == "" {
		return nil, &LoadError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("unsupported definition format %q (want .json, .yaml, .yml or .cue)", filepath.Ext(path)),
		}
	}

	doc, err := compiler.LoadFile(path)
	if err != nil {
		return nil, convertLoadError(err, path)
	}
	return doc, nil
}

// loadForCommand loads a definition for a command, reporting failures
// through f. Path problems are command errors; broken content fails the
// command with the load error's code.
func loadForCommand(f *OutputFormatter, path string) (*ir.Document, error) {
	doc, err := LoadDocument(path)
	if err == nil {
		return doc, nil
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return nil, f.SpaceError(ErrCodeGeneric, err)
	}
	if isCommandLoadError(loadErr.Code) {
		return nil, f.CommandError(loadErr.Code, loadErr.Message)
	}
	return nil, f.SpaceError(loadErr.Code, err)
}

// isCommandLoadError reports whether a load failure is about the command's
// input path rather than the definition's content.
func isCommandLoadError(code string) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeScanError, ErrCodeUnsupported:
		return true
	}
	return false
}

// FindCUEFiles returns the .cue files directly inside dir.
// CUE loads one package per directory, so subdirectories are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertLoadError converts a compiler or decoder error to a LoadError with
// position info.
func convertLoadError(err error, path string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var decodeErr *ir.DecodeError
	if errors.As(err, &decodeErr) {
		return &LoadError{
			Code:    ErrCodeDecodeFailed,
			Message: fmt.Sprintf("%s: %s", path, decodeErr.Error()),
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", path, err),
	}
}

// Error code constants - unified across all CLI commands.
// Document validation codes (E100-E199) come from the compiler package.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeDecodeFailed = "E004" // JSON or YAML decode failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeUnsupported  = "E008" // Unknown file extension or output format
	ErrCodeInvalidFlag  = "E009" // Malformed flag value
	ErrCodeSpaceInvalid = "E010" // Space construction or sampling failed
	ErrCodeTestFailed   = "E011" // One or more scenarios failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
// The last path segment decides, so space.x.kind maps like kind.
func MapFieldToErrorCode(field string) string {
	last := field
	if i := strings.LastIndexAny(field, ".]"); i >= 0 {
		last = field[i+1:]
	}
	switch {
	case last == "kind":
		return compiler.ErrUnknownKind
	case last == "version":
		return compiler.ErrUnsupportedVersion
	case strings.HasPrefix(field, "identity"):
		return compiler.ErrInvalidIdentity
	case strings.Contains(field, "enable_if") || strings.Contains(field, "forbid"):
		return compiler.ErrInvalidCondition
	case last == "choices":
		return compiler.ErrInvalidChoices
	case last == "weights":
		return compiler.ErrInvalidWeights
	case last == "quantization":
		return compiler.ErrInvalidQuantization
	case last == "lower" || last == "upper" || last == "loc" || last == "scale":
		return compiler.ErrInvalidParameter
	default:
		return ErrCodeBuildFailed
	}
}
