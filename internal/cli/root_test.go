package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns what it wrote
// to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func spacePath(name string) string {
	return filepath.Join("testdata", "spaces", name)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sspace", cmd.Use)
	assert.Contains(t, cmd.Long, "hyperparameter")

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"validate", "sample", "convert", "test"})
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command   string
		flag      string
		shorthand string
		def       string
	}{
		{"", "verbose", "v", "false"},
		{"", "format", "", "text"},
		{"sample", "count", "n", "1"},
		{"sample", "seed", "", "0"},
		{"sample", "var", "", "[]"},
		{"sample", "max-attempts", "", "100"},
		{"sample", "nested", "", "false"},
		{"convert", "to", "", "json"},
		{"convert", "output", "o", ""},
		{"test", "update", "", "false"},
		{"test", "filter", "", ""},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			cmd := root
			if tt.command != "" {
				var err error
				cmd, _, err = root.Find([]string{tt.command})
				require.NoError(t, err)
				require.Equal(t, tt.command, cmd.Name())
			}

			flag := cmd.Flags().Lookup(tt.flag)
			if flag == nil {
				flag = cmd.PersistentFlags().Lookup(tt.flag)
			}
			require.NotNil(t, flag, "missing --%s", tt.flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestFormatValidation(t *testing.T) {
	for format, want := range map[string]bool{
		"text": true,
		"json": true,
		"xml":  false,
		"":     false,
		"TEXT": false,
	} {
		assert.Equal(t, want, isValidFormat(format), format)
	}

	_, _, err := executeCommand(t, "--format", "invalid", "validate", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
