package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/sspace/ir"
	"github.com/roach88/sspace/space"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Index    int           // Offending sample index, -1 when the failure spans samples
	Sample   *space.Sample // Offending sample, nil when Index is -1
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Sample != nil {
		fmt.Fprintf(&buf, "  Sample [%d]: %s\n", e.Index, e.Sample)
	}

	return buf.String()
}

func sampleFailure(typ string, i int, s space.Sample, expected, actual string) *AssertionError {
	return &AssertionError{Type: typ, Expected: expected, Actual: actual, Index: i, Sample: &s}
}

// assertAlwaysPresent checks that every name appears in every sample.
func assertAlwaysPresent(samples []space.Sample, a Assertion) error {
	for i, s := range samples {
		for _, name := range a.Names {
			if !s.Has(name) {
				return sampleFailure(AssertAlwaysPresent, i, s,
					fmt.Sprintf("%s present", name), "absent")
			}
		}
	}
	return nil
}

// assertNeverPresent checks that no name appears in any sample.
func assertNeverPresent(samples []space.Sample, a Assertion) error {
	for i, s := range samples {
		for _, name := range a.Names {
			if v, ok := s.Get(name); ok {
				return sampleFailure(AssertNeverPresent, i, s,
					fmt.Sprintf("%s absent", name), fmt.Sprintf("present with value %s", ir.FormatValue(v)))
			}
		}
	}
	return nil
}

// assertPresentWhen checks the presence law for one condition: names appear
// in a sample exactly when the sample matches When.
func assertPresentWhen(samples []space.Sample, a Assertion) error {
	if a.When == nil {
		return fmt.Errorf("present_when: when is required")
	}
	want, err := ir.ToIRValue(a.When.Value)
	if err != nil {
		return fmt.Errorf("present_when: when.value: %w", err)
	}

	for i, s := range samples {
		v, ok := s.Get(a.When.Name)
		matched := ok && ir.EqualValues(v, want)
		for _, name := range a.Names {
			if s.Has(name) == matched {
				continue
			}
			state := "absent"
			if matched {
				state = "present"
			}
			return sampleFailure(AssertPresentWhen, i, s,
				fmt.Sprintf("%s %s when %s=%s", name, state, a.When.Name, ir.FormatValue(want)),
				fmt.Sprintf("%s has the opposite presence", name))
		}
	}
	return nil
}

// assertValueIn checks that a present name only takes allowed values.
func assertValueIn(samples []space.Sample, a Assertion) error {
	allowed, err := ir.ToIRValues(a.Values)
	if err != nil {
		return fmt.Errorf("value_in: values%w", err)
	}

	for i, s := range samples {
		v, ok := s.Get(a.Name)
		if !ok || ir.ContainsValue(allowed, v) {
			continue
		}
		return sampleFailure(AssertValueIn, i, s,
			fmt.Sprintf("%s in %s", a.Name, formatValues(allowed)),
			fmt.Sprintf("%s = %s", a.Name, ir.FormatValue(v)))
	}
	return nil
}

// assertValueRange checks that a present name is numeric and within bounds.
func assertValueRange(samples []space.Sample, a Assertion) error {
	bounds := describeRange(a.Min, a.Max)

	for i, s := range samples {
		v, ok := s.Get(a.Name)
		if !ok {
			continue
		}
		f, numeric := ir.AsFloat(v)
		if !numeric {
			return sampleFailure(AssertValueRange, i, s,
				fmt.Sprintf("%s numeric in %s", a.Name, bounds),
				fmt.Sprintf("%s = %s", a.Name, ir.FormatValue(v)))
		}
		if (a.Min != nil && f < *a.Min) || (a.Max != nil && f > *a.Max) {
			return sampleFailure(AssertValueRange, i, s,
				fmt.Sprintf("%s in %s", a.Name, bounds),
				fmt.Sprintf("%s = %s", a.Name, ir.FormatValue(v)))
		}
	}
	return nil
}

// assertPresentCount checks how many samples contain a name.
func assertPresentCount(samples []space.Sample, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("present_count: count is required")
	}
	count := 0
	for _, s := range samples {
		if s.Has(a.Name) {
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertPresentCount,
			Expected: fmt.Sprintf("%s present in %d of %d samples", a.Name, *a.Count, len(samples)),
			Actual:   fmt.Sprintf("present in %d", count),
			Index:    -1,
		}
	}
	return nil
}

// assertDistinct checks that a name never repeats a value across samples.
// Samples without the name are skipped.
func assertDistinct(samples []space.Sample, a Assertion) error {
	var seen []ir.IRValue
	for i, s := range samples {
		v, ok := s.Get(a.Name)
		if !ok {
			continue
		}
		if ir.ContainsValue(seen, v) {
			return sampleFailure(AssertDistinct, i, s,
				fmt.Sprintf("%s distinct across samples", a.Name),
				fmt.Sprintf("%s repeats %s", a.Name, ir.FormatValue(v)))
		}
		seen = append(seen, v)
	}
	return nil
}

func formatValues(vs []ir.IRValue) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = ir.FormatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func describeRange(lower, upper *float64) string {
	lo, hi := "-inf", "+inf"
	if lower != nil {
		lo = fmt.Sprint(*lower)
	}
	if upper != nil {
		hi = fmt.Sprint(*upper)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

// EvaluateAssertions evaluates all assertions against the samples.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(samples []space.Sample, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertAlwaysPresent:
			err = assertAlwaysPresent(samples, assertion)
		case AssertNeverPresent:
			err = assertNeverPresent(samples, assertion)
		case AssertPresentWhen:
			err = assertPresentWhen(samples, assertion)
		case AssertValueIn:
			err = assertValueIn(samples, assertion)
		case AssertValueRange:
			err = assertValueRange(samples, assertion)
		case AssertPresentCount:
			err = assertPresentCount(samples, assertion)
		case AssertDistinct:
			err = assertDistinct(samples, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
