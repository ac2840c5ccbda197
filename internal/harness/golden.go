package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sspace/ir"
)

// Snapshot renders a scenario result for golden comparison.
//
// The first line is a canonical JSON header naming the scenario, seed and
// sample count; each following line is one sample in canonical JSON. A
// failed sampling run records its error code in the header instead.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	header := ir.IRObject{
		"scenario": ir.IRString(scenario.Name),
		"seed":     ir.IRInt(scenario.Seed),
		"samples":  ir.IRInt(len(result.Samples)),
	}
	if result.ErrorCode != "" {
		header["error"] = ir.IRString(result.ErrorCode)
	}

	var buf bytes.Buffer
	line, err := ir.MarshalCanonical(header)
	if err != nil {
		return nil, err
	}
	buf.Write(line)
	buf.WriteByte('\n')

	for i, s := range result.Samples {
		line, err := ir.MarshalCanonical(s.Object())
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its samples against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if samples don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
