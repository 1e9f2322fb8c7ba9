// Package metadata encodes token metadata into the ABI tuple the minting
// contract decodes:
//
//	(string name, string image, string[] traits, string[] values)
//
// The layout is the standard Solidity ABI encoding of those four values, so any
// change to field order or types breaks on-chain decoders.
package metadata

import (
	"encoding/hex"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"weavemint.dev/weavemint/fault"
)

// PublishMetadata is the record minted alongside a token.
type PublishMetadata struct {
	Name             string
	ContentReference string
	TraitNames       []string
	TraitValues      []string
}

// New builds PublishMetadata from a trait record, preserving order.
func New(name, contentReference string, traits TraitRecord) PublishMetadata {
	return PublishMetadata{
		Name:             name,
		ContentReference: contentReference,
		TraitNames:       traits.Names(),
		TraitValues:      traits.Values(),
	}
}

// Traits returns the positional pairs as a TraitRecord. The result is only
// meaningful when Validate passes.
func (m PublishMetadata) Traits() TraitRecord {
	out := make(TraitRecord, 0, len(m.TraitNames))
	for i := range m.TraitNames {
		if i >= len(m.TraitValues) {
			break
		}
		out = append(out, Trait{Name: m.TraitNames[i], Value: m.TraitValues[i]})
	}
	return out
}

// Equal reports field-wise equality; nil and empty trait slices are equal.
func (m PublishMetadata) Equal(o PublishMetadata) bool {
	return m.Name == o.Name &&
		m.ContentReference == o.ContentReference &&
		slices.Equal(m.TraitNames, o.TraitNames) &&
		slices.Equal(m.TraitValues, o.TraitValues)
}

// Validate checks the invariants Encode relies on.
func (m PublishMetadata) Validate() error {
	const op = "metadata.validate"
	if len(m.TraitNames) != len(m.TraitValues) {
		return fault.Newf(fault.KindEncoding, op, "%d trait names but %d trait values", len(m.TraitNames), len(m.TraitValues))
	}
	if !utf8.ValidString(m.Name) {
		return fault.New(fault.KindEncoding, op, "name is not valid UTF-8")
	}
	if !utf8.ValidString(m.ContentReference) {
		return fault.New(fault.KindEncoding, op, "content reference is not valid UTF-8")
	}
	for i, s := range m.TraitNames {
		if !utf8.ValidString(s) {
			return fault.Newf(fault.KindEncoding, op, "trait name %d is not valid UTF-8", i)
		}
	}
	for i, s := range m.TraitValues {
		if !utf8.ValidString(s) {
			return fault.Newf(fault.KindEncoding, op, "trait value %d is not valid UTF-8", i)
		}
	}
	return nil
}

var schema = mustSchema()

func mustSchema() abi.Arguments {
	str, err := abi.NewType("string", "", nil)
	if err != nil {
		panic("metadata: string type: " + err.Error())
	}
	strs, err := abi.NewType("string[]", "", nil)
	if err != nil {
		panic("metadata: string[] type: " + err.Error())
	}
	return abi.Arguments{
		{Name: "name", Type: str},
		{Name: "image", Type: str},
		{Name: "traits", Type: strs},
		{Name: "values", Type: strs},
	}
}

// Encode returns the ABI encoding of m.
func Encode(m PublishMetadata) ([]byte, error) {
	const op = "metadata.encode"
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out, err := schema.Pack(m.Name, m.ContentReference, nonNil(m.TraitNames), nonNil(m.TraitValues))
	if err != nil {
		return nil, fault.Wrap(fault.KindEncoding, op, "packing tuple", err)
	}
	return out, nil
}

// Decode parses an ABI encoding produced by Encode (or any equivalent encoder).
func Decode(data []byte) (PublishMetadata, error) {
	const op = "metadata.decode"
	vals, err := schema.Unpack(data)
	if err != nil {
		return PublishMetadata{}, fault.Wrap(fault.KindEncoding, op, "unpacking tuple", err)
	}
	if len(vals) != len(schema) {
		return PublishMetadata{}, fault.Newf(fault.KindEncoding, op, "expected %d fields, got %d", len(schema), len(vals))
	}
	name, ok1 := vals[0].(string)
	ref, ok2 := vals[1].(string)
	names, ok3 := vals[2].([]string)
	values, ok4 := vals[3].([]string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return PublishMetadata{}, fault.New(fault.KindEncoding, op, "unexpected field types")
	}
	m := PublishMetadata{
		Name:             name,
		ContentReference: ref,
		TraitNames:       nonNil(names),
		TraitValues:      nonNil(values),
	}
	if err := m.Validate(); err != nil {
		return PublishMetadata{}, err
	}
	return m, nil
}

// EncodeHex returns Encode(m) as a 0x-prefixed hex string.
func EncodeHex(m PublishMetadata) (string, error) {
	b, err := Encode(m)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// DecodeHex accepts a hex string with or without the 0x prefix.
func DecodeHex(s string) (PublishMetadata, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublishMetadata{}, fault.Wrap(fault.KindEncoding, "metadata.decode", "invalid hex", err)
	}
	return Decode(b)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
