package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"weavemint.dev/weavemint/metadata"
)

// MintOptions holds flags for the mint command.
type MintOptions struct {
	*RootOptions
	Owner    string
	Metadata string
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mint --owner <address> [--metadata <hex>]",
		Short: "Mint a token from previously encoded metadata",
		Long: `Mint sends mintNft(owner, metadata) to the configured contract and waits
for the receipt. Metadata is read from stdin when --metadata is omitted, so
the output of "weavemint publish" can be piped in.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := opts.Metadata
			if src == "" {
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
			encoded, err := metadata.Encode(md)
			if err != nil {
				return err
			}

			minter, closeFn, err := opts.dialMinter(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			rcpt, err := minter.Mint(cmd.Context(), opts.Owner, encoded)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "minted %q to %s\ntx: %s\nblock: %d\n", md.Name, opts.Owner, rcpt.TxHash, rcpt.BlockNumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "address receiving the token")
	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "hex-encoded metadata")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
