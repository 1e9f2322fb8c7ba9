package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"weavemint.dev/weavemint/metadata"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Name      string
	Reference string
	Traits    []string
	Output    string
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "encode --name <name> --ref <reference> [--trait Name=Value ...]",
		Short:         "ABI-encode token metadata",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			traits, err := metadata.ParseTraits(opts.Traits)
			if err != nil {
				return err
			}
			data, err := metadata.Encode(metadata.New(opts.Name, opts.Reference, traits))
			if err != nil {
				return err
			}
			return writeEncoded(cmd.OutOrStdout(), opts.Output, data)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "token name")
	cmd.Flags().StringVar(&opts.Reference, "ref", "", "content reference")
	cmd.Flags().StringArrayVar(&opts.Traits, "trait", nil, "trait as Name=Value (repeatable, order kept)")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "hex", "output format (hex|raw)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("ref")

	return cmd
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode [hex]",
		Short:         "Decode ABI-encoded token metadata (reads stdin when no argument)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var src string
			if len(args) == 1 {
				src = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				src = string(b)
			}
			md, err := metadata.DecodeHex(strings.TrimSpace(src))
			if err != nil {
				return err
			}
			return printMetadata(cmd.OutOrStdout(), md)
		},
	}
}

type metadataView struct {
	Name      string           `yaml:"name"`
	Reference string           `yaml:"reference"`
	Traits    []metadata.Trait `yaml:"traits"`
}

func printMetadata(w io.Writer, md metadata.PublishMetadata) error {
	b, err := yaml.Marshal(metadataView{Name: md.Name, Reference: md.ContentReference, Traits: md.Traits()})
	if err != nil {
		return fmt.Errorf("rendering metadata: %w", err)
	}
	_, err = w.Write(b)
	return err
}
