package keys

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeed(b byte) []byte {
	return bytes.Repeat([]byte{b}, SeedSize)
}

func TestDeriveSeedDeterministic(t *testing.T) {
	root := make([]byte, SeedSize)
	for i := range root {
		root[i] = byte(i)
	}

	a, err := DeriveSeed(root, "dilithium3")
	require.NoError(t, err)
	b, err := DeriveSeed(root, "dilithium3")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveSeed(root, "other")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = DeriveSeed(root[:5], "x")
	require.Error(t, err)
	_, err = DeriveSeed(root, "bad name")
	require.Error(t, err)
}

func TestParseSeedHex(t *testing.T) {
	seed, err := ParseSeedHex("0x" + strings.Repeat("ab", SeedSize) + "\n")
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xab}, SeedSize), seed)

	_, err = ParseSeedHex("abcd")
	require.Error(t, err)
	_, err = ParseSeedHex("zz")
	require.Error(t, err)
}

func TestSigners_SignAndVerify(t *testing.T) {
	for _, alg := range []string{AlgEd25519, AlgDilithium3} {
		t.Run(alg, func(t *testing.T) {
			s, err := NewSigner(alg, testSeed(0x42))
			require.NoError(t, err)
			assert.Equal(t, alg, s.Algorithm())
			assert.True(t, strings.HasPrefix(s.Owner(), alg+":"))

			msg := []byte("hello")
			sig, err := s.Sign(msg)
			require.NoError(t, err)
			require.NoError(t, Verify(s.Owner(), msg, sig))

			assert.ErrorIs(t, Verify(s.Owner(), []byte("hellO"), sig), ErrBadSignature)
		})
	}
}

func TestNewSigner_DefaultsToEd25519(t *testing.T) {
	s, err := NewSigner("", testSeed(1))
	require.NoError(t, err)
	assert.Equal(t, AlgEd25519, s.Algorithm())

	_, err = NewSigner("rsa", testSeed(1))
	require.Error(t, err)
}

func TestVerify_RejectsMalformedOwner(t *testing.T) {
	require.Error(t, Verify("nocolon", nil, nil))
	require.Error(t, Verify("ed25519:!!!", nil, nil))
	require.Error(t, Verify("ed25519:AAAA", nil, nil))
	require.Error(t, Verify("rsa:AAAA", nil, nil))
}

func TestVerify_CrossOwnerFails(t *testing.T) {
	a, err := NewEd25519Signer(testSeed(1))
	require.NoError(t, err)
	b, err := NewEd25519Signer(testSeed(2))
	require.NoError(t, err)

	sig, err := a.Sign([]byte("m"))
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(b.Owner(), []byte("m"), sig), ErrBadSignature)
}

func TestKeyStore_InitLoadList(t *testing.T) {
	ks, err := OpenKeyStore(t.TempDir())
	require.NoError(t, err)

	names, err := ks.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	seed, err := ks.Init("creator", testSeed(7), false)
	require.NoError(t, err)
	_, err = ks.Init("creator", testSeed(8), false)
	require.Error(t, err, "existing key must not be overwritten")

	loaded, err := ks.Load("creator")
	require.NoError(t, err)
	assert.Equal(t, seed, loaded)

	random, err := ks.Init("alt", nil, false)
	require.NoError(t, err)
	assert.Len(t, random, SeedSize)

	names, err = ks.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alt", "creator"}, names)

	info, err := os.Stat(ks.Path("creator"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = ks.Init("../escape", nil, false)
	require.Error(t, err)
}

func TestLoadSeed_Precedence(t *testing.T) {
	hexSeed := strings.Repeat("01", SeedSize)
	t.Setenv("WEAVEMINT_TEST_SEED", strings.Repeat("02", SeedSize))

	seed, err := LoadSeed(hexSeed, "WEAVEMINT_TEST_SEED", "")
	require.NoError(t, err)
	assert.Equal(t, testSeed(1), seed)

	seed, err = LoadSeed("", "WEAVEMINT_TEST_SEED", "")
	require.NoError(t, err)
	assert.Equal(t, testSeed(2), seed)

	ks, err := OpenKeyStore(t.TempDir())
	require.NoError(t, err)
	_, err = ks.Init("file", testSeed(3), false)
	require.NoError(t, err)
	seed, err = LoadSeed("", "WEAVEMINT_UNSET_SEED", ks.Path("file"))
	require.NoError(t, err)
	assert.Equal(t, testSeed(3), seed)

	_, err = LoadSeed("", "", "")
	require.Error(t, err)
}
