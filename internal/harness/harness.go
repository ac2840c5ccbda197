package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sspace/internal/compiler"
	"github.com/roach88/sspace/ir"
	"github.com/roach88/sspace/space"
)

// Harness is the scenario execution engine.
// Each run rebuilds the space from its definition so scenarios never share
// frozen state.
type Harness struct {
	logger *slog.Logger
}

// New creates a harness that logs to logger. A nil logger discards output.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{logger: logger}
}

// Run executes a scenario with a harness that discards logs.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(scenario)
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Load the space definition and build the space
// 2. Draw the requested samples with the scenario seed and variables
// 3. Compare any failure against expect_error
// 4. Evaluate assertions against the samples
//
// The returned error is reserved for scenarios that cannot run at all, such
// as an unreadable definition. Space and sampling errors are outcomes and
// land in the Result.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	doc, err := compiler.LoadFile(scenario.Space)
	if err != nil {
		return nil, fmt.Errorf("failed to load space %s: %w", scenario.Space, err)
	}

	result := NewResult()

	samples, err := h.sample(doc, scenario)
	if err != nil {
		result.ErrorCode = string(space.ErrorCodeOf(err))
		h.logger.Debug("scenario sampling failed",
			"scenario", scenario.Name,
			"code", result.ErrorCode,
			"error", err,
		)
	}

	switch {
	case scenario.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("expected error %s, but sampling succeeded", scenario.ExpectError))
		return result, nil
	case scenario.ExpectError != "" && result.ErrorCode != scenario.ExpectError:
		result.AddError(fmt.Sprintf("expected error %s, got: %v", scenario.ExpectError, err))
		return result, nil
	case scenario.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("sampling failed: %v", err))
		return result, nil
	}

	result.Samples = samples
	for _, msg := range EvaluateAssertions(samples, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"pass", result.Pass,
	)
	return result, nil
}

// sample builds the space and draws the scenario's samples.
func (h *Harness) sample(doc *ir.Document, scenario *Scenario) ([]space.Sample, error) {
	s, err := space.Deserialize(doc)
	if err != nil {
		return nil, err
	}

	opts := []space.SampleOption{
		space.WithLogger(h.logger),
		space.WithVariables(scenario.Variables),
	}
	if scenario.MaxAttempts > 0 {
		opts = append(opts, space.WithMaxAttempts(scenario.MaxAttempts))
	}

	samples, err := s.SampleSeed(scenario.Seed, scenario.Samples, opts...)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("scenario sampled",
		"scenario", scenario.Name,
		"dimensions", len(doc.Dimensions),
		"samples", len(samples),
	)
	return samples, nil
}
