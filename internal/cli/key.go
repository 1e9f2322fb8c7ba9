package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"weavemint.dev/weavemint/keys"
)

// KeyOptions holds flags shared by the key subcommands.
type KeyOptions struct {
	*RootOptions
	Directory string
	Name      string
}

func (o *KeyOptions) store() (*keys.KeyStore, error) {
	dir := o.Directory
	if dir == "" {
		d, err := keys.DefaultDirectory()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return keys.OpenKeyStore(dir)
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage local signing keys",
	}
	cmd.PersistentFlags().StringVar(&opts.Directory, "dir", "", "key directory (default ~/.weavemint/keys)")
	cmd.PersistentFlags().StringVar(&opts.Name, "name", "default", "key name")

	cmd.AddCommand(newKeyInitCommand(opts))
	cmd.AddCommand(newKeyShowCommand(opts))
	cmd.AddCommand(newKeyListCommand(opts))
	return cmd
}

func newKeyInitCommand(opts *KeyOptions) *cobra.Command {
	var seedHex string
	var force bool

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Create a signing seed",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed []byte
			if seedHex != "" {
				s, err := keys.ParseSeedHex(seedHex)
				if err != nil {
					return fmt.Errorf("invalid --seed-hex: %w", err)
				}
				seed = s
			}
			ks, err := opts.store()
			if err != nil {
				return err
			}
			seed, err = ks.Init(opts.Name, seed, force)
			if err != nil {
				return fmt.Errorf("write key: %w", err)
			}
			return printOwners(cmd, ks.Path(opts.Name), seed)
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "seed as 64 hex chars (random when empty)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}

func newKeyShowCommand(opts *KeyOptions) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Print the owner strings for a stored key",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := opts.store()
			if err != nil {
				return err
			}
			seed, err := ks.Load(opts.Name)
			if err != nil {
				return err
			}
			if err := printOwners(cmd, ks.Path(opts.Name), seed); err != nil {
				return err
			}
			if reveal {
				fmt.Fprintf(cmd.OutOrStdout(), "seed: %s\n", hex.EncodeToString(seed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "also print the seed")
	return cmd
}

func newKeyListCommand(opts *KeyOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored keys",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := opts.store()
			if err != nil {
				return err
			}
			names, err := ks.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func printOwners(cmd *cobra.Command, path string, seed []byte) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "path: %s\n", path)
	for _, alg := range []string{keys.AlgEd25519, keys.AlgDilithium3} {
		s, err := keys.NewSigner(alg, seed)
		if err != nil {
			return err
		}
		owner := s.Owner()
		if len(owner) > 80 {
			owner = owner[:77] + "..."
		}
		fmt.Fprintf(out, "%s: %s\n", alg, owner)
	}
	return nil
}
