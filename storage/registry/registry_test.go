package registry

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weavemint.dev/weavemint/storage"
)

func TestMemoryBackendBuiltIn(t *testing.T) {
	assert.Contains(t, Names(), "memory")

	cas, closeFn, err := Open("memory")
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	_, ok := cas.(*storage.Memory)
	assert.True(t, ok)
}

func TestRegister_Validation(t *testing.T) {
	require.Error(t, Register(Backend{}))
	require.Error(t, Register(Backend{Name: "no-open"}))
	require.Error(t, Register(Backend{Name: "memory", Open: func() (storage.CAS, func() error, error) { return nil, nil, nil }}))
}

func TestRegisterFlagsAndOpen(t *testing.T) {
	var dir string
	opened := false
	require.NoError(t, Register(Backend{
		Name: "test-flagged",
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&dir, "test-flagged-dir", "", "dir")
		},
		Open: func() (storage.CAS, func() error, error) {
			opened = true
			return storage.NewMemory(), func() error { return nil }, nil
		},
	}))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--test-flagged-dir=/tmp/x"}))
	assert.Equal(t, "/tmp/x", dir)

	_, closeFn, err := Open("test-flagged")
	require.NoError(t, err)
	assert.NotNil(t, closeFn)
	assert.True(t, opened)

	_, _, err = Open("missing")
	require.Error(t, err)
}

func TestOpenWithConfig(t *testing.T) {
	var dir string
	require.NoError(t, Register(Backend{
		Name: "test-configured",
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&dir, "test-configured-dir", "", "dir")
		},
		Open: func() (storage.CAS, func() error, error) {
			return storage.NewMemory(), nil, nil
		},
	}))

	_, _, err := OpenWithConfig("test-configured", map[string]string{"test-configured-dir": "/srv/cas"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/cas", dir)

	_, _, err = OpenWithConfig("test-configured", map[string]string{"bogus": "1"})
	require.Error(t, err)

	_, _, err = OpenWithConfig("nope", nil)
	require.Error(t, err)
}
