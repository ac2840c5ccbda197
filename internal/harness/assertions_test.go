package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sspace/ir"
	"github.com/roach88/sspace/space"
)

func optimizerSamples() []space.Sample {
	return []space.Sample{
		space.NewSample(
			[]string{"optimizer", "optimizer.lr", "layers"},
			[]ir.IRValue{ir.IRString("adam"), ir.IRFloat(0.01), ir.IRInt(2)},
		),
		space.NewSample(
			[]string{"optimizer", "momentum", "layers"},
			[]ir.IRValue{ir.IRString("sgd"), ir.IRFloat(0.9), ir.IRInt(4)},
		),
		space.NewSample(
			[]string{"optimizer", "optimizer.lr", "layers"},
			[]ir.IRValue{ir.IRString("adam"), ir.IRFloat(0.05), ir.IRInt(1)},
		),
	}
}

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func TestAssertAlwaysPresent(t *testing.T) {
	samples := optimizerSamples()

	assert.NoError(t, assertAlwaysPresent(samples, Assertion{Names: []string{"optimizer", "layers"}}))

	err := assertAlwaysPresent(samples, Assertion{Names: []string{"optimizer.lr"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertAlwaysPresent, ae.Type)
	assert.Equal(t, 1, ae.Index)
	assert.Equal(t, "optimizer.lr present", ae.Expected)
}

func TestAssertNeverPresent(t *testing.T) {
	samples := optimizerSamples()

	assert.NoError(t, assertNeverPresent(samples, Assertion{Names: []string{"dropout"}}))

	err := assertNeverPresent(samples, Assertion{Names: []string{"momentum"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, ae.Index)
	assert.Equal(t, "present with value 0.9", ae.Actual)
}

func TestAssertPresentWhen(t *testing.T) {
	samples := optimizerSamples()

	t.Run("presence follows condition", func(t *testing.T) {
		err := assertPresentWhen(samples, Assertion{
			Names: []string{"optimizer.lr"},
			When:  &Match{Name: "optimizer", Value: "adam"},
		})
		assert.NoError(t, err)
	})

	t.Run("present without condition", func(t *testing.T) {
		err := assertPresentWhen(samples, Assertion{
			Names: []string{"layers"},
			When:  &Match{Name: "optimizer", Value: "adam"},
		})
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, 1, ae.Index)
		assert.Equal(t, "layers absent when optimizer=adam", ae.Expected)
	})

	t.Run("absent despite condition", func(t *testing.T) {
		err := assertPresentWhen(samples, Assertion{
			Names: []string{"momentum"},
			When:  &Match{Name: "optimizer", Value: "adam"},
		})
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, 0, ae.Index)
		assert.Equal(t, "momentum present when optimizer=adam", ae.Expected)
	})

	t.Run("numeric match ignores int and float", func(t *testing.T) {
		err := assertPresentWhen(samples, Assertion{
			Names: []string{"momentum"},
			When:  &Match{Name: "layers", Value: 4.0},
		})
		assert.NoError(t, err)
	})

	t.Run("missing when", func(t *testing.T) {
		err := assertPresentWhen(samples, Assertion{Names: []string{"x"}})
		require.Error(t, err)
	})
}

func TestAssertValueIn(t *testing.T) {
	samples := optimizerSamples()

	assert.NoError(t, assertValueIn(samples, Assertion{Name: "layers", Values: []any{1, 2, 4}}))
	assert.NoError(t, assertValueIn(samples, Assertion{Name: "dropout", Values: []any{0.1}}), "absent names are skipped")

	err := assertValueIn(samples, Assertion{Name: "layers", Values: []any{1, 2}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, ae.Index)
	assert.Equal(t, "layers in [1, 2]", ae.Expected)
	assert.Equal(t, "layers = 4", ae.Actual)

	err = assertValueIn(samples, Assertion{Name: "layers", Values: []any{nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "values[0]")
}

func TestAssertValueRange(t *testing.T) {
	samples := optimizerSamples()

	assert.NoError(t, assertValueRange(samples, Assertion{Name: "optimizer.lr", Min: floatPtr(0.001), Max: floatPtr(0.1)}))
	assert.NoError(t, assertValueRange(samples, Assertion{Name: "layers", Min: floatPtr(1)}))

	err := assertValueRange(samples, Assertion{Name: "optimizer.lr", Max: floatPtr(0.02)})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 2, ae.Index)
	assert.Equal(t, "optimizer.lr in [-inf, 0.02]", ae.Expected)

	err = assertValueRange(samples, Assertion{Name: "optimizer", Min: floatPtr(0)})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "optimizer numeric in [0, +inf]", ae.Expected)
}

func TestAssertPresentCount(t *testing.T) {
	samples := optimizerSamples()

	assert.NoError(t, assertPresentCount(samples, Assertion{Name: "optimizer.lr", Count: intPtr(2)}))
	assert.NoError(t, assertPresentCount(samples, Assertion{Name: "dropout", Count: intPtr(0)}))

	err := assertPresentCount(samples, Assertion{Name: "momentum", Count: intPtr(2)})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, -1, ae.Index)
	assert.Nil(t, ae.Sample)
	assert.Equal(t, "present in 1", ae.Actual)
}

func TestAssertDistinct(t *testing.T) {
	samples := optimizerSamples()

	assert.NoError(t, assertDistinct(samples, Assertion{Name: "layers"}))

	err := assertDistinct(samples, Assertion{Name: "optimizer"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 2, ae.Index)
	assert.Equal(t, "optimizer repeats adam", ae.Actual)
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	errs := EvaluateAssertions(optimizerSamples(), []Assertion{
		{Type: AssertAlwaysPresent, Names: []string{"optimizer"}},
		{Type: AssertPresentWhen, Names: []string{"momentum"}, When: &Match{Name: "optimizer", Value: "sgd"}},
		{Type: AssertValueIn, Name: "layers", Values: []any{1, 2, 4}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	errs := EvaluateAssertions(optimizerSamples(), []Assertion{
		{Type: AssertAlwaysPresent, Names: []string{"optimizer"}},
		{Type: AssertNeverPresent, Names: []string{"layers"}},
		{Type: AssertPresentCount, Name: "layers", Count: intPtr(1)},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: never_present")
	assert.Contains(t, errs[1], "Assertion failed: present_count")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(optimizerSamples(), []Assertion{{Type: "final_state"}})
	require.Len(t, errs, 1)
	assert.Equal(t, `assertion[0]: unknown assertion type "final_state"`, errs[0])
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	s := space.NewSample([]string{"optimizer"}, []ir.IRValue{ir.IRString("adam")})
	err := &AssertionError{
		Type:     AssertAlwaysPresent,
		Expected: "optimizer.lr present",
		Actual:   "absent",
		Index:    3,
		Sample:   &s,
	}

	errorStr := err.Error()
	assert.Contains(t, errorStr, "Assertion failed: always_present")
	assert.Contains(t, errorStr, "Expected: optimizer.lr present")
	assert.Contains(t, errorStr, "Actual: absent")
	assert.Contains(t, errorStr, `Sample [3]: {optimizer="adam"}`)
}
