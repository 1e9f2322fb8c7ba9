package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// ErrBadSignature is returned by Verify when a signature does not match.
var ErrBadSignature = errors.New("keys: signature verification failed")

// Signer signs messages on behalf of one owner.
type Signer interface {
	// Owner is the "<alg>:<base64 public key>" string embedded in transactions.
	Owner() string
	Algorithm() string
	Sign(message []byte) ([]byte, error)
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Ed25519Signer signs sha256(message) with an Ed25519 key.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer builds a signer from a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Algorithm() string { return AlgEd25519 }

func (s *Ed25519Signer) Owner() string {
	pub := s.key.Public().(ed25519.PublicKey)
	return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub)
}

func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ed25519.Sign(s.key, digest[:]), nil
}

// Dilithium3Signer signs sha3-256(message) with a Dilithium3 key.
type Dilithium3Signer struct {
	pub  *mode3.PublicKey
	priv *mode3.PrivateKey
}

// NewDilithium3Signer derives a Dilithium3 keypair from a 32-byte seed.
func NewDilithium3Signer(seed []byte) (*Dilithium3Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("dilithium3 seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	var s [SeedSize]byte
	copy(s[:], seed)
	pub, priv := mode3.NewKeyFromSeed(&s)
	return &Dilithium3Signer{pub: pub, priv: priv}, nil
}

func (s *Dilithium3Signer) Algorithm() string { return AlgDilithium3 }

func (s *Dilithium3Signer) Owner() string {
	b, _ := s.pub.MarshalBinary()
	return AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(b)
}

func (s *Dilithium3Signer) Sign(message []byte) ([]byte, error) {
	digest, err := digestFor("sha3-256", message)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return sig, nil
}

// NewSigner builds a Signer for alg ("" means ed25519). Dilithium3 keys are
// derived from the root seed so one stored seed serves both schemes.
func NewSigner(alg string, rootSeed []byte) (Signer, error) {
	switch alg {
	case "", AlgEd25519:
		return NewEd25519Signer(rootSeed)
	case AlgDilithium3:
		seed, err := DeriveSeed(rootSeed, AlgDilithium3)
		if err != nil {
			return nil, err
		}
		return NewDilithium3Signer(seed)
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

// Verify checks sig over message against an owner string.
func Verify(owner string, message, sig []byte) error {
	alg, b64, ok := strings.Cut(owner, ":")
	if !ok {
		return fmt.Errorf("keys: malformed owner %q", owner)
	}
	pubBytes, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("keys: owner public key: %w", err)
	}

	switch alg {
	case AlgEd25519:
		if len(pubBytes) != ed25519.PublicKeySize {
			return fmt.Errorf("keys: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pubBytes))
		}
		digest := sha256.Sum256(message)
		if !ed25519.Verify(ed25519.PublicKey(pubBytes), digest[:], sig) {
			return ErrBadSignature
		}
		return nil
	case AlgDilithium3:
		var pub mode3.PublicKey
		if err := pub.UnmarshalBinary(pubBytes); err != nil {
			return fmt.Errorf("keys: dilithium3 public key: %w", err)
		}
		digest, err := digestFor("sha3-256", message)
		if err != nil {
			return err
		}
		if !mode3.Verify(&pub, digest, sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("keys: unsupported owner algorithm %q", alg)
	}
}
