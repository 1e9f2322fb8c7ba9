package weave

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"weavemint.dev/weavemint/keys"
)

// EnvelopeFormat is the version written into every envelope.
const EnvelopeFormat = 1

// State tracks a transaction through its one-way lifecycle.
type State int

const (
	Unsigned State = iota
	Signed
	Posted
)

func (s State) String() string {
	switch s {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	case Posted:
		return "posted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrNotUnsigned = errors.New("weave: transaction already signed")
	ErrNotSigned   = errors.New("weave: transaction is not signed")
)

// Transaction wraps one payload for the storage network. It is built per
// upload and must not be reused.
type Transaction struct {
	Anchor       string
	Owner        string
	Tags         []Tag
	Data         []byte
	SignatureAlg string
	Signature    []byte
	// ID is set once the network accepts the transaction.
	ID string

	state State
}

// NewTransaction returns an unsigned transaction. tags is copied.
func NewTransaction(anchor string, data []byte, tags []Tag) *Transaction {
	return &Transaction{
		Anchor: anchor,
		Data:   data,
		Tags:   slices.Clone(tags),
	}
}

func (tx *Transaction) State() State { return tx.state }

// Tag returns the first value for name.
func (tx *Transaction) Tag(name string) (string, bool) { return Lookup(tx.Tags, name) }

// Sign fills in the owner and signature using s.
func (tx *Transaction) Sign(s keys.Signer) error {
	if tx.state != Unsigned {
		return ErrNotUnsigned
	}
	tx.Owner = s.Owner()
	tx.SignatureAlg = s.Algorithm()
	scope, err := tx.SignedScope()
	if err != nil {
		return err
	}
	sig, err := s.Sign(scope)
	if err != nil {
		return err
	}
	tx.Signature = sig
	tx.state = Signed
	return nil
}

// MarkPosted records the network-assigned id.
func (tx *Transaction) MarkPosted(id string) error {
	if tx.state != Signed {
		return ErrNotSigned
	}
	tx.ID = id
	tx.state = Posted
	return nil
}

// Verify checks the signature against the owner.
func (tx *Transaction) Verify() error {
	if len(tx.Signature) == 0 {
		return ErrNotSigned
	}
	scope, err := tx.SignedScope()
	if err != nil {
		return err
	}
	return keys.Verify(tx.Owner, scope, tx.Signature)
}

// signedScope covers everything but the signature. The payload is committed
// by digest so signers never need to stream it.
type signedScope struct {
	Format       int    `cbor:"1,keyasint"`
	Anchor       string `cbor:"2,keyasint"`
	Owner        string `cbor:"3,keyasint"`
	Tags         []Tag  `cbor:"4,keyasint"`
	DataSHA256   []byte `cbor:"5,keyasint"`
	DataSize     int    `cbor:"6,keyasint"`
	SignatureAlg string `cbor:"7,keyasint"`
}

// SignedScope returns the deterministic bytes a signature covers.
func (tx *Transaction) SignedScope() ([]byte, error) {
	digest := sha256.Sum256(tx.Data)
	return encMode.Marshal(signedScope{
		Format:       EnvelopeFormat,
		Anchor:       tx.Anchor,
		Owner:        tx.Owner,
		Tags:         tx.Tags,
		DataSHA256:   digest[:],
		DataSize:     len(tx.Data),
		SignatureAlg: tx.SignatureAlg,
	})
}

type envelope struct {
	Format       int    `cbor:"1,keyasint"`
	Anchor       string `cbor:"2,keyasint"`
	Owner        string `cbor:"3,keyasint"`
	Tags         []Tag  `cbor:"4,keyasint"`
	Data         []byte `cbor:"5,keyasint"`
	SignatureAlg string `cbor:"6,keyasint"`
	Signature    []byte `cbor:"7,keyasint"`
}

// Envelope returns the wire encoding of a signed transaction.
func (tx *Transaction) Envelope() ([]byte, error) {
	if tx.state == Unsigned {
		return nil, ErrNotSigned
	}
	return encMode.Marshal(envelope{
		Format:       EnvelopeFormat,
		Anchor:       tx.Anchor,
		Owner:        tx.Owner,
		Tags:         tx.Tags,
		Data:         tx.Data,
		SignatureAlg: tx.SignatureAlg,
		Signature:    tx.Signature,
	})
}

// DecodeEnvelope parses an envelope into a signed transaction. It rejects
// non-canonical encodings so that one transaction has exactly one id.
func DecodeEnvelope(b []byte) (*Transaction, error) {
	var env envelope
	if err := decMode.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("weave: decoding envelope: %w", err)
	}
	if env.Format != EnvelopeFormat {
		return nil, fmt.Errorf("weave: unsupported envelope format %d", env.Format)
	}
	if len(env.Signature) == 0 {
		return nil, ErrNotSigned
	}
	tx := &Transaction{
		Anchor:       env.Anchor,
		Owner:        env.Owner,
		Tags:         env.Tags,
		Data:         env.Data,
		SignatureAlg: env.SignatureAlg,
		Signature:    env.Signature,
		state:        Signed,
	}
	again, err := tx.Envelope()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, b) {
		return nil, errors.New("weave: envelope is not canonically encoded")
	}
	return tx, nil
}

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// transaction always produces identical bytes, and therefore the same id.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("weave: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("weave: CBOR decoder initialization failed: " + err.Error())
	}
}
