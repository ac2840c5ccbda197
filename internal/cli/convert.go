package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sspace/space"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	To     string // target encoding: json or yaml
	Output string // output file path
}

// ConversionResult describes a written conversion.
type ConversionResult struct {
	Format     string `json:"format"`
	Output     string `json:"output"`
	Dimensions int    `json:"dimensions"`
}

// ConvertFormats lists the encodings convert can write.
var ConvertFormats = []string{"json", "yaml"}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <definition>",
		Short: "Convert a space definition to JSON or YAML",
		Long: `Convert a space definition to its JSON or YAML document form.

The definition is loaded and built into a space before it is written, so
only valid definitions convert. Without --output the document is written
to stdout.

Example:
  sspace convert space.cue --to yaml
  sspace convert ./spaces --to json -o space.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "json", "target encoding (json|yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runConvert(opts *ConvertOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.To != "json" && opts.To != "yaml" {
		return formatter.CommandError(ErrCodeUnsupported,
			fmt.Sprintf("invalid --to %q: must be one of %v", opts.To, ConvertFormats))
	}

	doc, err := loadForCommand(formatter, path)
	if err != nil {
		return err
	}

	s, err := space.Deserialize(doc)
	if err != nil {
		return formatter.SpaceError(ErrCodeSpaceInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return formatter.SpaceError(ErrCodeSpaceInvalid, err)
	}

	var data []byte
	if opts.To == "yaml" {
		data, err = s.ToYAML()
	} else {
		data, err = s.ToJSON(true)
	}
	if err != nil {
		return formatter.SpaceError(ErrCodeGeneric, err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	formatter.VerboseLog("Encoded %d dimension(s) as %s", len(doc.Dimensions), opts.To)

	if opts.Output == "" {
		_, err := formatter.Writer.Write(data)
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0644); err != nil {
		return formatter.CommandError(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(ConversionResult{
			Format:     opts.To,
			Output:     opts.Output,
			Dimensions: len(doc.Dimensions),
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %s document to %s\n", opts.To, opts.Output)
	return nil
}
