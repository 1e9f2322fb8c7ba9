package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/gateway"
	"weavemint.dev/weavemint/generate"
	"weavemint.dev/weavemint/keys"
	"weavemint.dev/weavemint/mint"
	"weavemint.dev/weavemint/weave"
	"weavemint.dev/weavemint/weave/wallet"
)

func (o *RootOptions) dialGateway(target string) (*gateway.Client, error) {
	gw := o.Config.Gateway
	if target == "" {
		target = gw.Target
	}
	c, err := gateway.Dial(target, gateway.DialOptions{Timeout: gw.DialTimeout, MaxMsgBytes: gw.MaxMsgBytes})
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, "cli.gateway", "dialing "+target, err)
	}
	c.Timeout = gw.Timeout
	return c, nil
}

// openWallet loads the signing seed from --seed-hex, the configured
// environment variable, or the configured key file, in that order.
func (o *RootOptions) openWallet(seedHex string, poster wallet.Poster) (*wallet.Wallet, error) {
	w := o.Config.Wallet
	seed, err := keys.LoadSeed(seedHex, w.SeedEnv, w.KeyFile)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, "cli.wallet", "loading signing key", err)
	}
	wal, err := wallet.New(w.SignatureAlg, seed, poster)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, "cli.wallet", "building signer", err)
	}
	return wal, nil
}

func (o *RootOptions) generator() *generate.Client {
	g := o.Config.Generation
	c := &generate.Client{Endpoint: g.Endpoint, ModelID: g.ModelID, Logger: o.Logger}
	if g.TokenEnv != "" {
		c.Token = os.Getenv(g.TokenEnv)
	}
	return c
}

func (o *RootOptions) uploader(cred weave.Credential) *weave.Uploader {
	return &weave.Uploader{
		AppName:    o.Config.App.Name,
		Function:   o.Config.App.Purpose,
		Credential: cred,
		Logger:     o.Logger,
	}
}

func (o *RootOptions) dialMinter(ctx context.Context) (*mint.EthMinter, func(), error) {
	m := o.Config.Mint
	key := os.Getenv(m.KeyEnv)
	if key == "" {
		return nil, nil, fault.Newf(fault.KindConfig, "cli.mint", "$%s is not set", m.KeyEnv)
	}
	return mint.Dial(ctx, mint.Options{
		RPCURL:     m.RPCURL,
		Contract:   m.Contract,
		ChainID:    m.ChainID,
		PrivateKey: key,
		Logger:     o.Logger,
	})
}

// parseTags reads repeated Name=Value flags in order.
func parseTags(entries []string) ([]weave.Tag, error) {
	tags := make([]weave.Tag, 0, len(entries))
	for _, e := range entries {
		name, value, ok := strings.Cut(e, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fault.Newf(fault.KindInvalid, "cli.tag", "tag %q must be Name=Value", e)
		}
		tags = append(tags, weave.Tag{Name: name, Value: value})
	}
	return tags, nil
}

func writeEncoded(w io.Writer, format string, data []byte) error {
	switch format {
	case "", "hex":
		_, err := fmt.Fprintf(w, "0x%x\n", data)
		return err
	case "raw":
		_, err := w.Write(data)
		return err
	default:
		return fault.Newf(fault.KindInvalid, "cli.output", "unknown output format %q (hex|raw)", format)
	}
}
