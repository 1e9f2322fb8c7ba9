// Package keys loads wallet key material and signs storage transactions.
//
// Two signature schemes are supported: Ed25519 over a sha256 digest, and
// Dilithium3 over a sha3-256 digest. Public keys are rendered as owner strings
// of the form "<alg>:<base64 public key>", which is what the storage gateway
// verifies against.
//
// KeyStore is a local-first convenience for CLI use; library callers may build
// Signers from seeds they manage themselves.
package keys
