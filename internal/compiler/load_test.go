package compiler

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sspace/ir"
)

func TestLoadFileFormatsAgree(t *testing.T) {
	fromJSON, err := LoadFile(filepath.Join("testdata", "optimizer.json"))
	require.NoError(t, err)

	for _, name := range []string{"optimizer.yaml", "optimizer.cue"} {
		t.Run(name, func(t *testing.T) {
			doc, err := LoadFile(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, fromJSON, doc)
		})
	}

	names := make([]string, len(fromJSON.Dimensions))
	for i, d := range fromJSON.Dimensions {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"optimizer", "optimizer.lr", "layers"}, names)
	assert.Equal(t, []ir.ConditionSpec{{Op: ir.OpGt, Name: "optimizer.lr", Value: ir.IRFloat(0.05)}},
		fromJSON.Dimension("optimizer.lr").Forbid)
}

func TestLoadDir(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "cuedir"))
	require.NoError(t, err)

	require.Len(t, doc.Dimensions, 2)
	assert.NotNil(t, doc.Dimension("optimizer"))
	lr := doc.Dimension("optimizer.lr")
	require.NotNil(t, lr)
	require.NotNil(t, lr.EnableIf)
	assert.Equal(t, ir.ModeAll, lr.EnableIf.Mode)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("testdata", "nope.json"))
		require.Error(t, err)
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("testdata", "unknown.toml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported definition format")
	})

	t.Run("decode error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("testdata", "broken.json"))
		var decodeErr *ir.DecodeError
		require.True(t, errors.As(err, &decodeErr), "got %v", err)
	})

	t.Run("cue conflict", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("testdata", "conflict.cue"))
		var compileErr *CompileError
		require.True(t, errors.As(err, &compileErr), "got %v", err)
		assert.NotEmpty(t, compileErr.Message)
	})
}

func TestFormatOf(t *testing.T) {
	tests := map[string]string{
		"a.json":    FormatJSON,
		"a.YAML":    FormatYAML,
		"dir/a.yml": FormatYAML,
		"a.cue":     FormatCUE,
		"a.toml":    "",
		"no-ext":    "",
	}
	for path, want := range tests {
		assert.Equal(t, want, FormatOf(path), path)
	}
}
