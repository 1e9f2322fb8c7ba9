// Package wallet implements weave.Credential with a local signing key and a
// network poster.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"weavemint.dev/weavemint/keys"
	"weavemint.dev/weavemint/weave"
)

// Poster submits encoded envelopes and returns the assigned id.
type Poster interface {
	Post(ctx context.Context, envelope []byte) (string, error)
}

// Wallet signs with Signer and submits through Poster.
type Wallet struct {
	Signer keys.Signer
	Poster Poster
}

var _ weave.Credential = (*Wallet)(nil)

// New returns a wallet for the seed using alg ("" means ed25519).
func New(alg string, seed []byte, p Poster) (*Wallet, error) {
	s, err := keys.NewSigner(alg, seed)
	if err != nil {
		return nil, err
	}
	return &Wallet{Signer: s, Poster: p}, nil
}

// Owner returns the owner string transactions are signed under.
func (w *Wallet) Owner() string {
	if w.Signer == nil {
		return ""
	}
	return w.Signer.Owner()
}

func (w *Wallet) Sign(ctx context.Context, tx *weave.Transaction) error {
	if w.Signer == nil {
		return errors.New("wallet: no signer")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.Sign(w.Signer)
}

func (w *Wallet) PostSigned(ctx context.Context, tx *weave.Transaction) (string, error) {
	if w.Poster == nil {
		return "", errors.New("wallet: no poster")
	}
	env, err := tx.Envelope()
	if err != nil {
		return "", err
	}
	id, err := w.Poster.Post(ctx, env)
	if err != nil {
		return "", fmt.Errorf("wallet: post: %w", err)
	}
	return id, nil
}
