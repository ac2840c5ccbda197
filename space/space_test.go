package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sspace/ir"
)

// optimizerSpace builds the two-level optimizer example used across tests.
func optimizerSpace(t *testing.T) *Space {
	t.Helper()
	s := New()

	_, err := s.Categorical("optimizer", "sgd", "adam")
	require.NoError(t, err)

	lr, err := s.LogUniform("optimizer.lr", 1, 2, Quantization(0.01))
	require.NoError(t, err)
	require.NoError(t, lr.EnableIf(Either(Eq("optimizer", "adam"), Eq("optimizer", "sgd"))))
	require.NoError(t, lr.ForbidEqual(1))

	return s
}

func TestSpace_InsertionOrder(t *testing.T) {
	s := New()
	for _, name := range []string{"c", "a", "b"} {
		_, err := s.Uniform(name, 0, 1)
		require.NoError(t, err)
	}

	var names []string
	for _, d := range s.Dimensions() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
	assert.Equal(t, ir.KindUniform, s.Dimension("a").Distribution().Kind())
	assert.Nil(t, s.Dimension("missing"))
}

func TestSpace_DuplicateName(t *testing.T) {
	s := New()
	_, err := s.Uniform("x", 0, 1)
	require.NoError(t, err)

	_, err = s.Categorical("x", "a")
	requireCode(t, err, ErrCodeDuplicateName)

	err = s.Variable("x")
	requireCode(t, err, ErrCodeDuplicateName)

	_, err = s.Subspace("x")
	requireCode(t, err, ErrCodeDuplicateName)
}

func TestSpace_InvalidName(t *testing.T) {
	_, err := New().Uniform("", 0, 1)
	requireCode(t, err, ErrCodeInvalidName)

	_, err = New().Uniform("trailing.", 0, 1)
	requireCode(t, err, ErrCodeInvalidName)
}

func TestSpace_ConstructionErrorsNameDimension(t *testing.T) {
	_, err := New().Categorical("optimizer")
	requireCode(t, err, ErrCodeInvalidDistribution)

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "optimizer", ce.Dimension)
}

func TestSpace_UnsupportedChoice(t *testing.T) {
	_, err := New().Categorical("x", "a", struct{}{})
	requireCode(t, err, ErrCodeInvalidDistribution)
}

func TestDimension_MixedActivation(t *testing.T) {
	s := New()
	_, err := s.Categorical("a", 1, 2)
	require.NoError(t, err)
	b, err := s.Uniform("b", 0, 1)
	require.NoError(t, err)

	require.NoError(t, b.EnableIf(Eq("a", 1)))
	requireCode(t, b.EnableIfAny(Eq("a", 2)), ErrCodeMixedActivation)

	c, err := s.Uniform("c", 0, 1)
	require.NoError(t, err)
	require.NoError(t, c.EnableIfAny(Eq("a", 1)))
	requireCode(t, c.EnableIf(Eq("a", 2)), ErrCodeMixedActivation)
}

func TestDimension_RepeatedEnableIf(t *testing.T) {
	s := New()
	_, err := s.Uniform("a", 0, 10)
	require.NoError(t, err)
	b, err := s.Uniform("b", 0, 1)
	require.NoError(t, err)

	require.NoError(t, b.EnableIf(Gt("a", 2)))
	require.NoError(t, b.EnableIf(Lt("a", 8)))

	mode, conds := b.Conditions()
	assert.Equal(t, ir.ModeAll, mode)
	assert.Len(t, conds, 2)

	env := mapEnv{present: map[string]any{"a": 5.0}}
	assert.Equal(t, True, b.Eligibility(env))
	env = mapEnv{present: map[string]any{"a": 9.0}}
	assert.Equal(t, False, b.Eligibility(env))
}

func TestDimension_EnableIfAny(t *testing.T) {
	s := New()
	_, err := s.Categorical("a", "x", "y", "z")
	require.NoError(t, err)
	b, err := s.Uniform("b", 0, 1)
	require.NoError(t, err)

	require.NoError(t, b.EnableIfAny(Eq("a", "x"), Eq("a", "y")))

	assert.Equal(t, True, b.Eligibility(mapEnv{present: map[string]any{"a": "y"}}))
	assert.Equal(t, False, b.Eligibility(mapEnv{present: map[string]any{"a": "z"}}))
	assert.Equal(t, Unknown, b.Eligibility(mapEnv{pending: map[string]bool{"a": true}}))

	requireCode(t, b.EnableIfAny(), ErrCodeInvalidCondition)
}

func TestDimension_InvalidCondition(t *testing.T) {
	d, err := New().Uniform("x", 0, 1)
	require.NoError(t, err)

	requireCode(t, d.EnableIf(nil), ErrCodeInvalidCondition)
	requireCode(t, d.EnableIf(Eq("y", map[string]int{})), ErrCodeInvalidCondition)
	requireCode(t, d.ForbidIn(), ErrCodeInvalidCondition)
}

func TestDimension_ForbidScope(t *testing.T) {
	s := New()
	_, err := s.Categorical("optimizer", "sgd", "adam")
	require.NoError(t, err)
	lr, err := s.Uniform("lr", 0, 1)
	require.NoError(t, err)

	requireCode(t, lr.Forbid(Eq("optimizer", "sgd")), ErrCodeForbidScope)
	requireCode(t, lr.Forbid(Both(Gt("lr", 0.5), Eq("optimizer", "sgd"))), ErrCodeForbidScope)
	require.NoError(t, lr.Forbid(Both(Gt("lr", 0.25), Lt("lr", 0.5))))
}

func TestDimension_Forbidden(t *testing.T) {
	d, err := New().Categorical("x", 1, 2, 3, 4)
	require.NoError(t, err)
	require.NoError(t, d.ForbidEqual(1))
	require.NoError(t, d.ForbidIn(3, 4))

	assert.True(t, d.Forbidden(ir.IRInt(1)))
	assert.True(t, d.Forbidden(ir.IRFloat(1)))
	assert.False(t, d.Forbidden(ir.IRInt(2)))
	assert.True(t, d.Forbidden(ir.IRInt(4)))
	assert.Len(t, d.Forbids(), 2)
}

func TestSpace_FrozenAfterSample(t *testing.T) {
	s := optimizerSpace(t)
	assert.False(t, s.Frozen())

	_, err := s.SampleSeed(0, 1)
	require.NoError(t, err)
	assert.True(t, s.Frozen())

	_, err = s.Uniform("late", 0, 1)
	requireCode(t, err, ErrCodeFrozen)

	lr := s.Dimension("optimizer.lr")
	requireCode(t, lr.EnableIf(Eq("optimizer", "adam")), ErrCodeFrozen)
	requireCode(t, lr.ForbidEqual(2), ErrCodeFrozen)
	requireCode(t, s.Variable("epoch"), ErrCodeFrozen)
	requireCode(t, s.Identity("uid", 8), ErrCodeFrozen)

	_, err = s.Subspace("model")
	requireCode(t, err, ErrCodeFrozen)
}

func TestSpace_FailedValidationDoesNotFreeze(t *testing.T) {
	s := New()
	d, err := s.Uniform("lr", 0, 1)
	require.NoError(t, err)
	require.NoError(t, d.EnableIf(Eq("optimizer", "adam")))

	_, err = s.SampleSeed(0, 1)
	requireCode(t, err, ErrCodeUnknownReference)
	assert.False(t, s.Frozen())

	_, err = s.Categorical("optimizer", "adam")
	require.NoError(t, err)
	_, err = s.SampleSeed(0, 1)
	require.NoError(t, err)
}

func TestValidate_UnknownReference(t *testing.T) {
	s := New()
	d, err := s.Uniform("x", 0, 1)
	require.NoError(t, err)
	require.NoError(t, d.EnableIf(Eq("nonexistent", 1)))

	err = s.Validate()
	requireCode(t, err, ErrCodeUnknownReference)
	assert.Contains(t, err.Error(), `"nonexistent"`)
}

func TestValidate_Cycle(t *testing.T) {
	s := New()
	a, err := s.Categorical("a", 1, 2)
	require.NoError(t, err)
	b, err := s.Categorical("b", 1, 2)
	require.NoError(t, err)
	require.NoError(t, a.EnableIf(Eq("b", 1)))
	require.NoError(t, b.EnableIf(Eq("a", 1)))

	err = s.Validate()
	requireCode(t, err, ErrCodeCycle)
	assert.Contains(t, err.Error(), "a → b → a")

	_, err = s.DependencyOrder()
	requireCode(t, err, ErrCodeCycle)
}

func TestValidate_SelfReference(t *testing.T) {
	s := New()
	x, err := s.Uniform("x", 0, 1)
	require.NoError(t, err)
	require.NoError(t, x.EnableIf(Gt("x", 0.5)))

	requireCode(t, s.Validate(), ErrCodeCycle)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	s := New()
	x, err := s.Uniform("x", 0, 1)
	require.NoError(t, err)
	require.NoError(t, x.EnableIf(Eq("ghost", 1)))
	y, err := s.Uniform("y", 0, 1)
	require.NoError(t, err)
	require.NoError(t, y.EnableIf(Eq("phantom", 1)))

	err = s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, err.Error(), "phantom")
}

func TestSpace_DependencyOrder(t *testing.T) {
	s := New()
	lr, err := s.Uniform("optimizer.lr", 0, 1)
	require.NoError(t, err)
	_, err = s.Uniform("batch", 1, 2)
	require.NoError(t, err)
	_, err = s.Categorical("optimizer", "adam")
	require.NoError(t, err)
	require.NoError(t, lr.EnableIf(Eq("optimizer", "adam")))

	order, err := s.DependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"batch", "optimizer", "optimizer.lr"}, order)
}

func TestSpace_Subspace(t *testing.T) {
	s := New()
	model, err := s.Subspace("model")
	require.NoError(t, err)
	enc, err := model.Subspace("encoder")
	require.NoError(t, err)

	d, err := enc.Uniform("depth", 1, 4, Discrete())
	require.NoError(t, err)

	assert.Equal(t, "model.encoder.depth", d.Name())
	assert.Equal(t, "model.encoder", enc.Prefix())
	assert.Equal(t, []string{"model", "model.encoder"}, s.Subspaces())
	assert.Same(t, d, s.Dimension("model.encoder.depth"))
}

func TestSpace_Identity(t *testing.T) {
	s := New()
	require.NoError(t, s.Identity("uid", 0))
	requireCode(t, s.UUIDIdentity("uuid"), ErrCodeDuplicateName)

	doc := s.Serialize()
	require.NotNil(t, doc.Identity)
	assert.Equal(t, ir.DefaultIdentitySize, doc.Identity.Size)

	requireCode(t, New().Identity("uid", 65), ErrCodeInvalidIdentity)
}

func TestSpace_IdentityOnSubspace(t *testing.T) {
	s := New()
	opt, err := s.Subspace("opt")
	require.NoError(t, err)

	err = opt.Identity("uid", 8)
	requireCode(t, err, ErrCodeInvalidIdentity)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "opt.uid", ce.Dimension)

	requireCode(t, opt.UUIDIdentity("uid"), ErrCodeInvalidIdentity)

	// The root can still claim the name.
	require.NoError(t, s.Identity("uid", 8))
	doc := s.Serialize()
	require.NotNil(t, doc.Identity)
	assert.Equal(t, "uid", doc.Identity.Name)
}
