package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/metadata"
	"weavemint.dev/weavemint/publish"
	"weavemint.dev/weavemint/shrink"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	File          string
	URL           string
	Prompt        string
	Name          string
	Traits        []string
	Tags          []string
	MaxBytes      int64
	MaxIterations int
	Gateway       string
	SeedHex       string
	Mint          bool
	Owner         string
	Output        string
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish --name <name> (--file <path> | --url <url> | --prompt <text>)",
		Short: "Fit, upload, and encode one image",
		Long: `Publish sources an image, compresses it until it fits the byte budget (or
the pass limit is reached), uploads it through the gateway, and prints the
ABI-encoded token metadata. With --mint the metadata is also minted to --owner.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.File, "file", "", "local image file")
	f.StringVar(&opts.URL, "url", "", "remote image URL")
	f.StringVar(&opts.Prompt, "prompt", "", "generate the image from this prompt")
	f.StringVar(&opts.Name, "name", "", "token name")
	f.StringArrayVar(&opts.Traits, "trait", nil, "trait as Name=Value (repeatable, order kept)")
	f.StringArrayVar(&opts.Tags, "tag", nil, "extra upload tag as Name=Value (repeatable)")
	f.Int64Var(&opts.MaxBytes, "max-bytes", 0, "size budget in bytes (overrides config)")
	f.IntVar(&opts.MaxIterations, "iterations", 0, "maximum compression passes (overrides config)")
	f.StringVar(&opts.Gateway, "gateway", "", "gateway gRPC target (overrides config)")
	f.StringVar(&opts.SeedHex, "seed-hex", "", "signing seed as 64 hex chars (overrides config)")
	f.BoolVar(&opts.Mint, "mint", false, "mint the encoded metadata after publishing")
	f.StringVar(&opts.Owner, "owner", "", "address receiving the minted token")
	f.StringVarP(&opts.Output, "out", "o", "hex", "metadata output format (hex|raw)")
	cmd.MarkFlagsMutuallyExclusive("file", "url", "prompt")
	cmd.MarkFlagsOneRequired("file", "url", "prompt")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runPublish(ctx context.Context, opts *PublishOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Mint && opts.Owner == "" {
		return fault.New(fault.KindInvalid, "cli.publish", "--mint requires --owner")
	}

	traits, err := metadata.ParseTraits(opts.Traits)
	if err != nil {
		return err
	}
	tags, err := parseTags(opts.Tags)
	if err != nil {
		return err
	}

	req := publish.Request{Name: opts.Name, Prompt: opts.Prompt, Traits: traits, Tags: tags}
	switch {
	case opts.File != "":
		img, err := asset.ReadFile(opts.File)
		if err != nil {
			return err
		}
		req.Source = asset.Local(img)
	case opts.URL != "":
		req.Source = asset.Remote(opts.URL)
	}

	gw, err := opts.dialGateway(opts.Gateway)
	if err != nil {
		return err
	}
	defer gw.Close()
	wal, err := opts.openWallet(opts.SeedHex, gw)
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

	p := &publish.Pipeline{
		Generator:       opts.generator(),
		Fetcher:         &asset.Fetcher{},
		Compressor:      &shrink.Compressor{Logger: opts.Logger},
		Uploader:        opts.uploader(wal),
		MaxBytes:        budget.MaxBytes,
		MaxIterations:   budget.MaxIterations,
		ReferencePrefix: opts.Config.Gateway.ReferencePrefix,
		Logger:          opts.Logger,
	}
	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "reference: %s\n", res.ContentReference)
	fmt.Fprintf(errOut, "size:      %s after %d pass(es)", humanize.Bytes(uint64(res.Image.Size())), res.Passes)
	if !res.WithinBudget {
		fmt.Fprintf(errOut, " (over budget of %s)", humanize.Bytes(uint64(budget.MaxBytes)))
	}
	fmt.Fprintln(errOut)
	fmt.Fprintf(errOut, "signer:    %s\n", wal.Owner())

	if opts.Mint {
		minter, closeFn, err := opts.dialMinter(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		rcpt, err := minter.Mint(ctx, opts.Owner, res.Encoded)
		if err != nil {
			return err
		}
		fmt.Fprintf(errOut, "minted:    %s (block %d)\n", rcpt.TxHash, rcpt.BlockNumber)
	}

	return writeEncoded(cmd.OutOrStdout(), opts.Output, res.Encoded)
}
