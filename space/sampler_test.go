package space

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sspace/internal/testutil"
	"github.com/roach88/sspace/ir"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSample_Unconditional(t *testing.T) {
	s := New()
	_, err := s.Uniform("lr", 0, 1)
	require.NoError(t, err)
	_, err = s.Categorical("optimizer", "sgd", "adam")
	require.NoError(t, err)
	_, err = s.Ordinal("layers", 1, 2, 4)
	require.NoError(t, err)

	samples, err := s.SampleSeed(7, 25)
	require.NoError(t, err)
	require.Len(t, samples, 25)

	for _, smp := range samples {
		assert.Equal(t, []string{"lr", "optimizer", "layers"}, smp.Names())
		for _, d := range s.Dimensions() {
			v, ok := smp.Get(d.Name())
			require.True(t, ok)
			assert.True(t, d.Distribution().Contains(v), "%s=%v", d.Name(), v)
		}
	}
}

func TestSample_OptimizerScenario(t *testing.T) {
	s := optimizerSpace(t)

	samples, err := s.SampleSeed(0, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	for _, smp := range samples {
		opt, ok := smp.Get("optimizer")
		require.True(t, ok)
		assert.Contains(t, []ir.IRValue{ir.IRString("sgd"), ir.IRString("adam")}, opt)

		v, ok := smp.Get("optimizer.lr")
		require.True(t, ok, "either optimizer enables the learning rate")
		lr, ok := v.(ir.IRFloat)
		require.True(t, ok, "expected IRFloat, got %T", v)
		assert.GreaterOrEqual(t, float64(lr), 1.0)
		assert.LessOrEqual(t, float64(lr), 2.0)
		assert.NotEqual(t, 1.0, float64(lr))
		assertOnGrid(t, float64(lr), 1, 0.01)
	}
}

func TestSample_PresenceFollowsCondition(t *testing.T) {
	s := New()
	_, err := s.Categorical("optimizer", "sgd", "adam")
	require.NoError(t, err)
	lr, err := s.Uniform("lr", 0, 1)
	require.NoError(t, err)
	require.NoError(t, lr.EnableIf(Eq("optimizer", "adam")))

	samples, err := s.SampleSeed(3, 200)
	require.NoError(t, err)

	seen := map[bool]int{}
	for _, smp := range samples {
		opt, _ := smp.Get("optimizer")
		adam := opt == ir.IRString("adam")
		assert.Equal(t, adam, smp.Has("lr"), smp.String())
		seen[adam]++
	}
	assert.Positive(t, seen[true])
	assert.Positive(t, seen[false])
}

func TestSample_ForbiddenValuesNeverDrawn(t *testing.T) {
	s := New()
	x, err := s.Uniform("x", 0, 3, Discrete())
	require.NoError(t, err)
	require.NoError(t, x.ForbidIn(0, 1, 2))

	samples, err := s.SampleSeed(11, 50, WithLogger(discardLogger()))
	require.NoError(t, err)
	for _, smp := range samples {
		v, _ := smp.Get("x")
		assert.Equal(t, ir.IRInt(3), v)
	}
}

func TestSample_QuantizedValuesOnGrid(t *testing.T) {
	s := New()
	_, err := s.Uniform("a", 0.05, 0.95, Quantization(0.3))
	require.NoError(t, err)
	_, err = s.LogUniform("b", 1e-3, 1, Quantization(0.001))
	require.NoError(t, err)

	samples, err := s.SampleSeed(5, 100)
	require.NoError(t, err)
	for _, smp := range samples {
		a, _ := smp.Get("a")
		af, _ := ir.AsFloat(a)
		assertOnGrid(t, af, 0.05, 0.3)
		assert.LessOrEqual(t, af, 0.95)

		b, _ := smp.Get("b")
		bf, _ := ir.AsFloat(b)
		assertOnGrid(t, bf, 1e-3, 0.001)
	}
}

func TestSample_RetryExhausted(t *testing.T) {
	s := New()
	x, err := s.Uniform("x", 0, 3, Discrete())
	require.NoError(t, err)
	require.NoError(t, x.ForbidEqual(0))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// A source that always returns zero draws the forbidden lower bound.
	src := testutil.NewSequenceSource(0)
	_, err = s.Sample(src.Rand(), 1, WithMaxAttempts(5), WithLogger(logger))
	require.Error(t, err)
	assert.True(t, IsSamplingError(err))
	assert.False(t, IsConfigurationError(err))
	assert.Equal(t, ErrCodeRetryExhausted, ErrorCodeOf(err))

	var se *SamplingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "x", se.Dimension)
	assert.Equal(t, 5, se.Attempts)

	out := logs.String()
	assert.Equal(t, 5, strings.Count(out, "forbidden candidate rejected"))
	assert.Contains(t, out, "retry budget exhausted")
	assert.Contains(t, out, "dimension=x")
}

func TestSample_ChildDeclaredBeforeParent(t *testing.T) {
	s := New()
	lr, err := s.Uniform("optimizer.lr", 0, 1)
	require.NoError(t, err)
	require.NoError(t, lr.EnableIf(Eq("optimizer", "adam")))
	_, err = s.Categorical("optimizer", "adam")
	require.NoError(t, err)

	samples, err := s.SampleSeed(1, 10)
	require.NoError(t, err)
	for _, smp := range samples {
		assert.True(t, smp.Has("optimizer.lr"))
		assert.Equal(t, []string{"optimizer.lr", "optimizer"}, smp.Names())
	}
}

func TestSample_InactiveChain(t *testing.T) {
	s := New()
	_, err := s.Categorical("a", "off")
	require.NoError(t, err)
	b, err := s.Uniform("b", 0, 1)
	require.NoError(t, err)
	require.NoError(t, b.EnableIf(Eq("a", "on")))
	c, err := s.Uniform("c", 0, 1)
	require.NoError(t, err)
	require.NoError(t, c.EnableIf(Gt("b", 0)))
	d, err := s.Uniform("d", 0, 1)
	require.NoError(t, err)
	require.NoError(t, d.EnableIf(Ne("b", 5)))

	samples, err := s.SampleSeed(2, 5)
	require.NoError(t, err)
	for _, smp := range samples {
		assert.Equal(t, []string{"a"}, smp.Names())
	}
}

func TestSample_EnableIfAny(t *testing.T) {
	s := New()
	_, err := s.Categorical("mode", "x", "y", "z")
	require.NoError(t, err)
	v, err := s.Uniform("v", 0, 1)
	require.NoError(t, err)
	require.NoError(t, v.EnableIfAny(Eq("mode", "x"), Eq("mode", "y")))

	samples, err := s.SampleSeed(9, 100)
	require.NoError(t, err)
	for _, smp := range samples {
		mode, _ := smp.Get("mode")
		assert.Equal(t, mode != ir.IRString("z"), smp.Has("v"))
	}
}

func TestSampler_Unresolved(t *testing.T) {
	// Validation rejects cycles before sampling, so build the sampler by hand.
	s := New()
	a, err := s.Categorical("a", 1)
	require.NoError(t, err)
	b, err := s.Categorical("b", 1)
	require.NoError(t, err)
	require.NoError(t, a.EnableIf(Eq("b", 1)))
	require.NoError(t, b.EnableIf(Eq("a", 1)))

	sm := &Sampler{maxAttempts: 1, logger: discardLogger(), dims: s.Dimensions()}
	_, err = sm.Sample(testutil.NewRand(0))
	requireCode(t, err, ErrCodeUnresolved)

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "a", ce.Dimension)
	assert.Contains(t, ce.Message, "a, b")
}

func TestSample_Variables(t *testing.T) {
	build := func(t *testing.T) *Space {
		s := New()
		require.NoError(t, s.Variable("epoch"))
		warm, err := s.Uniform("warmup", 0, 1)
		require.NoError(t, err)
		require.NoError(t, warm.EnableIf(Gt("epoch", 10)))
		return s
	}

	t.Run("supplied", func(t *testing.T) {
		samples, err := build(t).SampleSeed(0, 1, WithVariables(map[string]any{"epoch": 20}))
		require.NoError(t, err)
		smp := samples[0]
		assert.Equal(t, []string{"warmup", "epoch"}, smp.Names())
		v, _ := smp.Get("epoch")
		assert.Equal(t, ir.IRInt(20), v)
	})

	t.Run("disables dependent", func(t *testing.T) {
		samples, err := build(t).SampleSeed(0, 1, WithVariables(map[string]any{"epoch": 5}))
		require.NoError(t, err)
		assert.False(t, samples[0].Has("warmup"))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := build(t).SampleSeed(0, 1)
		requireCode(t, err, ErrCodeMissingVariable)
	})

	t.Run("undeclared", func(t *testing.T) {
		_, err := build(t).SampleSeed(0, 1, WithVariables(map[string]any{"epoch": 1, "bogus": 2}))
		requireCode(t, err, ErrCodeUnknownReference)
	})

	t.Run("unsupported value", func(t *testing.T) {
		_, err := build(t).SampleSeed(0, 1, WithVariables(map[string]any{"epoch": []int{1}}))
		requireCode(t, err, ErrCodeInvalidOption)
	})
}

func TestSample_HexIdentity(t *testing.T) {
	s := optimizerSpace(t)
	require.NoError(t, s.Identity("uid", 8))

	samples, err := s.SampleSeed(4, 3)
	require.NoError(t, err)
	for _, smp := range samples {
		names := smp.Names()
		assert.Equal(t, "uid", names[len(names)-1])

		id, ok := smp.Get("uid")
		require.True(t, ok)
		require.Len(t, string(id.(ir.IRString)), 8)

		obj := smp.Object()
		delete(obj, "uid")
		want, err := ir.SampleIdentity(obj, 8)
		require.NoError(t, err)
		assert.Equal(t, ir.IRString(want), id)
	}
}

func TestSample_UUIDIdentity(t *testing.T) {
	s := optimizerSpace(t)
	require.NoError(t, s.UUIDIdentity("id"))

	samples, err := s.SampleSeed(4, 1)
	require.NoError(t, err)

	id, ok := samples[0].Get("id")
	require.True(t, ok)
	parsed, err := uuid.Parse(string(id.(ir.IRString)))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestSample_Deterministic(t *testing.T) {
	first, err := optimizerSpace(t).SampleSeed(42, 20)
	require.NoError(t, err)
	second, err := optimizerSpace(t).SampleSeed(42, 20)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Map(), second[i].Map())
		assert.Equal(t, first[i].Names(), second[i].Names())
	}
}

func TestSample_Counts(t *testing.T) {
	samples, err := optimizerSpace(t).SampleSeed(0, 0)
	require.NoError(t, err)
	assert.Empty(t, samples)

	_, err = optimizerSpace(t).SampleSeed(0, -1)
	require.Error(t, err)
}

func TestNewSampler_Options(t *testing.T) {
	_, err := NewSampler(optimizerSpace(t), WithMaxAttempts(0))
	requireCode(t, err, ErrCodeInvalidOption)

	sm, err := NewSampler(optimizerSpace(t), WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, sm.logger)
	assert.Equal(t, DefaultMaxAttempts, sm.maxAttempts)

	_, err = sm.Sample(nil)
	require.Error(t, err)
}

func TestSampler_SharedAcrossGoroutines(t *testing.T) {
	sm, err := NewSampler(optimizerSpace(t), WithLogger(discardLogger()))
	require.NoError(t, err)

	want, err := sm.SampleN(testutil.NewRand(99), 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]Sample, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = sm.SampleN(testutil.NewRand(99), 10)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		for j := range want {
			assert.Equal(t, want[j].Map(), results[i][j].Map())
		}
	}
}

func TestSample_Nested(t *testing.T) {
	s := New()
	_, err := s.Uniform("lr", 0, 1)
	require.NoError(t, err)
	model, err := s.Subspace("model")
	require.NoError(t, err)
	_, err = model.Uniform("depth", 2, 2.5, Discrete())
	require.NoError(t, err)
	enc, err := model.Subspace("encoder")
	require.NoError(t, err)
	_, err = enc.Categorical("act", "relu")
	require.NoError(t, err)

	samples, err := s.SampleSeed(0, 1)
	require.NoError(t, err)

	nested := samples[0].Nested()
	assert.Contains(t, nested, "lr")
	assert.Equal(t, map[string]any{
		"depth":   int64(2),
		"encoder": map[string]any{"act": "relu"},
	}, nested["model"])
}

func assertOnGrid(t *testing.T, v, origin, step float64) {
	t.Helper()
	k := (v - origin) / step
	assert.InDelta(t, math.Round(k), k, 1e-6, "%v is not on the grid %v + k*%v", v, origin, step)
}
