// Package cidutil derives the content identifiers used for storage
// transactions.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Sum returns a CIDv1 (raw codec, sha2-256 multihash) derived from data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// TxID returns the string form of Sum(envelope), which is how transaction ids
// are exchanged. It returns "" only if hashing fails, which sha2-256 does not.
func TxID(envelope []byte) string {
	id, err := Sum(envelope)
	if err != nil {
		return ""
	}
	return id.String()
}

// Parse decodes a transaction id, rejecting anything but CIDv1 raw sha2-256.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	pref := id.Prefix()
	if pref.Version != 1 || pref.Codec != cid.Raw || pref.MhType != multihash.SHA2_256 {
		return cid.Undef, errUnsupported
	}
	return id, nil
}
