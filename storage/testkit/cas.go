// Package testkit provides a conformance suite for storage.CAS backends.
package testkit

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weavemint.dev/weavemint/cidutil"
	"weavemint.dev/weavemint/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("signed envelope bytes")

		id, err := cas.Put(want)
		require.NoError(t, err)
		wantID, err := cidutil.Sum(want)
		require.NoError(t, err)
		assert.Equal(t, wantID, id)

		got, err := cas.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(b)
		require.NoError(t, err)
		id2, err := cas.Put(b)
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		cas := newCAS(t)
		id, err := cas.Put([]byte("immutable"))
		require.NoError(t, err)

		got, err := cas.Get(id)
		require.NoError(t, err)
		got[0] = 'X'

		again, err := cas.Get(id)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), again)
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := cidutil.Sum(b)
		require.NoError(t, err)

		assert.False(t, cas.Has(id))
		_, err = cas.Get(id)
		assert.True(t, storage.IsNotFound(err), "got err=%v want ErrNotFound", err)

		_, err = cas.Put(b)
		require.NoError(t, err)
		assert.True(t, cas.Has(id))
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		assert.False(t, cas.Has(undef))
		_, err := cas.Get(undef)
		assert.Error(t, err)
	})
}
