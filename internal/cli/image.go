package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/shrink"
)

// NewProbeCommand creates the probe command.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "probe <file>",
		Short:         "Print an image's dimensions, format, and size",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := asset.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := shrink.Probe(img)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "format: %s (%s)\n", info.Format, info.MediaType)
			fmt.Fprintf(out, "dimensions: %dx%d\n", info.Width, info.Height)
			fmt.Fprintf(out, "size: %s (%d bytes)\n", humanize.Bytes(uint64(info.Size)), info.Size)
			if budget := rootOpts.Config.Budget.MaxBytes; info.Size > budget {
				fmt.Fprintf(out, "over budget by %s\n", humanize.Bytes(uint64(info.Size-budget)))
			}
			return nil
		},
	}
}

// CompressOptions holds flags for the compress command.
type CompressOptions struct {
	*RootOptions
	MaxBytes      int64
	MaxIterations int
	Output        string
}

// NewCompressCommand creates the compress command.
func NewCompressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "compress <file> -o <out>",
		Short:         "Shrink an image to the byte budget without uploading it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.MaxBytes, "max-bytes", 0, "size budget in bytes (overrides config)")
	cmd.Flags().IntVar(&opts.MaxIterations, "iterations", 0, "maximum compression passes (overrides config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runCompress(opts *CompressOptions, path string, cmd *cobra.Command) error {
	img, err := asset.ReadFile(path)
	if err != nil {
		return err
	}
	budget := opts.Config.Budget
	if opts.MaxBytes > 0 {
		budget.MaxBytes = opts.MaxBytes
	}
	if opts.MaxIterations > 0 {
		budget.MaxIterations = opts.MaxIterations
	}

	c := &shrink.Compressor{Logger: opts.Logger}
	res, err := c.Compress(cmd.Context(), img, budget.MaxBytes, budget.MaxIterations)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.Output, res.Image.Data, 0o644); err != nil {
		return fault.Wrap(fault.KindInvalid, "cli.compress", "writing "+opts.Output, err)
	}

	out := cmd.OutOrStdout()
	for i, step := range res.Trace {
		fmt.Fprintf(out, "pass %d: %dx%d %s\n", i, step.Width, step.Height, humanize.Bytes(uint64(step.Size)))
	}
	if !res.WithinBudget {
		fmt.Fprintf(out, "still over budget of %s after %d passes\n", humanize.Bytes(uint64(budget.MaxBytes)), res.Passes)
	}
	fmt.Fprintf(out, "wrote %s\n", opts.Output)
	return nil
}
