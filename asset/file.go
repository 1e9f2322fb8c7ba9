package asset

import (
	"os"
	"path/filepath"

	"weavemint.dev/weavemint/fault"
)

// ReadFile loads a local image. The media type is sniffed from the content.
func ReadFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fault.Wrap(fault.KindInvalid, "asset.read_file", "reading "+path, err)
	}
	return Image{
		Data:      data,
		MediaType: mediaType("", data),
		FileName:  filepath.Base(path),
	}, nil
}
