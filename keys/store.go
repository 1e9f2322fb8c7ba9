package keys

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps wallet seeds as hex files under a directory, one per name.
//
// EXPERIMENTAL: a local-first convenience for the CLI; not a key management
// system.
type KeyStore struct {
	Directory string
}

// DefaultDirectory returns ~/.weavemint/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".weavemint", "keys"), nil
}

// OpenKeyStore returns a KeyStore rooted at directory, or at DefaultDirectory
// when directory is empty. Nothing is created until a key is written.
func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

// Path returns the seed file path for name.
func (ks *KeyStore) Path(name string) string {
	return filepath.Join(ks.Directory, name+".key")
}

// Init writes seed under name. A nil seed generates a fresh random one.
// Existing keys are kept unless overwrite is set.
func (ks *KeyStore) Init(name string, seed []byte, overwrite bool) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
	}
	if _, err := NewEd25519Signer(seed); err != nil {
		return nil, err
	}

	path := ks.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return nil, err
	}
	return seed, file.Close()
}

// Load reads the seed stored under name.
func (ks *KeyStore) Load(name string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ks.Path(name))
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// List returns stored key names, sorted.
func (ks *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".key"))
	}
	sort.Strings(names)
	return names, nil
}
