package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sspace/ir"
	"github.com/roach88/sspace/space"
)

// SampleOptions holds flags for the sample command.
type SampleOptions struct {
	*RootOptions
	Count       int
	Seed        int64
	Vars        []string // name=value pairs
	MaxAttempts int
	Nested      bool
}

// SampleResult is the JSON payload of the sample command.
type SampleResult struct {
	Seed    int64 `json:"seed"`
	Count   int   `json:"count"`
	Samples []any `json:"samples"`
}

// NewSampleCommand creates the sample command.
func NewSampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SampleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sample <definition>",
		Short: "Draw samples from a space definition",
		Long: `Draw samples from a space definition.

Each sample is printed as one JSON object per line. Dimensions whose
conditions are not met are absent. The same seed and definition always
produce the same samples.

Example:
  sspace sample space.yaml -n 5 --seed 42
  sspace sample space.cue --var epoch=3 --nested
  sspace sample ./spaces --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of samples to draw")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (defaults to the current time)")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "variable value as name=value (repeatable)")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", space.DefaultMaxAttempts, "draws per dimension before a forbidden value fails the sample")
	cmd.Flags().BoolVar(&opts.Nested, "nested", false, "nest subspace dimensions as objects")

	return cmd
}

func runSample(opts *SampleOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	if opts.Count < 1 {
		return formatter.CommandError(ErrCodeInvalidFlag, fmt.Sprintf("--count must be at least 1, got %d", opts.Count))
	}
	vars, err := ParseVariables(opts.Vars)
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidFlag, err.Error())
	}
	if !cmd.Flags().Changed("seed") {
		opts.Seed = time.Now().UnixNano()
	}

	doc, err := loadForCommand(formatter, path)
	if err != nil {
		return err
	}

	s, err := space.Deserialize(doc)
	if err != nil {
		return formatter.SpaceError(ErrCodeSpaceInvalid, err)
	}
	sampler, err := space.NewSampler(s,
		space.WithLogger(logger),
		space.WithVariables(vars),
		space.WithMaxAttempts(opts.MaxAttempts),
	)
	if err != nil {
		return formatter.SpaceError(ErrCodeSpaceInvalid, err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("sampling started", "path", path, "count", opts.Count, "seed", opts.Seed)
	rng := rand.New(rand.NewSource(opts.Seed))
	samples := make([]any, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return WrapExitError(ExitFailure, "sampling interrupted", err)
		}
		sample, err := sampler.Sample(rng)
		if err != nil {
			logger.Debug("sampling failed", "index", i, "error", err)
			return formatter.SpaceError(ErrCodeSpaceInvalid, err)
		}

		var out any = sample
		if opts.Nested {
			out = sample.Nested()
		}
		if opts.Format == "json" {
			samples = append(samples, out)
			continue
		}
		line, err := json.Marshal(out)
		if err != nil {
			return WrapExitError(ExitFailure, "encoding sample", err)
		}
		fmt.Fprintln(formatter.Writer, string(line))
	}
	logger.Debug("sampling finished", "count", opts.Count)

	if opts.Format == "json" {
		return formatter.Success(SampleResult{Seed: opts.Seed, Count: len(samples), Samples: samples})
	}
	return nil
}

// ParseVariables parses name=value pairs. Values are read as integers,
// floats or booleans when they look like one, and as strings otherwise.
func ParseVariables(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: want name=value", pair)
		}
		if _, dup := vars[name]; dup {
			return nil, fmt.Errorf("invalid --var %q: %s given twice", pair, name)
		}
		vars[name] = ir.ParseValue(value)
	}
	return vars, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
