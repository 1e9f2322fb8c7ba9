package localfs

import (
	"fmt"

	"github.com/spf13/pflag"

	"weavemint.dev/weavemint/storage"
	"weavemint.dev/weavemint/storage/registry"
)

var flagDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Local filesystem CAS (directory)",
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "LocalFS CAS directory (for --backend=localfs)")
		},
		Open: func() (storage.CAS, func() error, error) {
			if flagDir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			cas, err := New(flagDir)
			return cas, nil, err
		},
	})
}
