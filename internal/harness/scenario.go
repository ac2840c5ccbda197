package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a sampling scenario.
// A scenario draws a fixed number of samples from a space definition with a
// fixed seed, then asserts properties that every draw must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Space is the path to the space definition (.json, .yaml, .yml, .cue
	// or a directory of .cue files). Relative paths are resolved against
	// the scenario file location.
	Space string `yaml:"space"`

	// Seed seeds the generator. Zero is a valid seed.
	Seed int64 `yaml:"seed"`

	// Samples is the number of samples to draw.
	Samples int `yaml:"samples"`

	// MaxAttempts overrides the per-dimension retry budget when positive.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// Variables supplies values for the space's declared variables.
	Variables map[string]any `yaml:"variables,omitempty"`

	// ExpectError is the error code sampling must fail with, e.g.
	// UNRESOLVED or RETRY_EXHAUSTED. When set, assertions are optional.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the drawn samples.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion validates a property of every sample in a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "always_present": Names appear in every sample
	// - "never_present": Names appear in no sample
	// - "present_when": Names appear exactly in the samples matching When
	// - "value_in": Name, when present, takes one of Values
	// - "value_range": Name, when present, lies within [Min, Max]
	// - "present_count": Name appears in exactly Count samples
	// - "distinct": Name takes a different value in every sample
	Type string `yaml:"type"`

	// Names lists the dimension names checked (always_present, never_present,
	// present_when).
	Names []string `yaml:"names,omitempty"`

	// Name is the single dimension checked (value_in, value_range,
	// present_count, distinct).
	Name string `yaml:"name,omitempty"`

	// Values is the allowed set (value_in).
	Values []any `yaml:"values,omitempty"`

	// Min and Max bound numeric values inclusively (value_range).
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// Count is the expected number of samples containing Name (present_count).
	Count *int `yaml:"count,omitempty"`

	// When selects samples by one name/value pair (present_when).
	When *Match `yaml:"when,omitempty"`
}

// Match is a name/value pair a sample either has or lacks.
type Match struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// Assertion type constants.
const (
	AssertAlwaysPresent = "always_present"
	AssertNeverPresent  = "never_present"
	AssertPresentWhen   = "present_when"
	AssertValueIn       = "value_in"
	AssertValueRange    = "value_range"
	AssertPresentCount  = "present_count"
	AssertDistinct      = "distinct"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The space path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving the space path against
// basePath when it is relative.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Space != "" && !filepath.IsAbs(scenario.Space) && basePath != "" {
		scenario.Space = filepath.Join(basePath, scenario.Space)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Space == "" {
		return fmt.Errorf("space is required")
	}
	if _, err := os.Stat(s.Space); os.IsNotExist(err) {
		return fmt.Errorf("space definition not found: %s", s.Space)
	}

	if s.Samples < 1 {
		return fmt.Errorf("samples must be at least 1, got %d", s.Samples)
	}

	if s.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be non-negative, got %d", s.MaxAttempts)
	}

	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAlwaysPresent, AssertNeverPresent:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for %s", index, a.Type)
		}
	case AssertPresentWhen:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for present_when", index)
		}
		if a.When == nil || a.When.Name == "" || a.When.Value == nil {
			return fmt.Errorf("assertions[%d]: when.name and when.value are required for present_when", index)
		}
	case AssertValueIn:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for value_in", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values list is required for value_in", index)
		}
	case AssertValueRange:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for value_range", index)
		}
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for value_range", index)
		}
		if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
			return fmt.Errorf("assertions[%d]: min %v exceeds max %v", index, *a.Min, *a.Max)
		}
	case AssertPresentCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for present_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for present_count", index)
		}
	case AssertDistinct:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for distinct", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
