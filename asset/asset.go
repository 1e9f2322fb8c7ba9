// Package asset holds the image values that flow through the publishing
// pipeline and resolves local or remote sources into them.
package asset

import (
	"bytes"
	"io"
	"path"
	"strings"
)

// DefaultMediaType is used when neither the producer nor sniffing declares one.
const DefaultMediaType = "application/octet-stream"

// Image is an immutable image payload. Transformations return a new Image;
// callers must not mutate Data after construction.
type Image struct {
	Data      []byte
	MediaType string
	FileName  string
}

// Size returns the payload length in bytes.
func (img Image) Size() int64 { return int64(len(img.Data)) }

// Open returns a fresh reader over the payload. Callers must Close it.
func (img Image) Open() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(img.Data))
}

// WithData returns a copy of img carrying data and mediaType. The file name's
// extension is replaced by ext when ext is non-empty.
func (img Image) WithData(data []byte, mediaType, ext string) Image {
	name := img.FileName
	if ext != "" && name != "" {
		name = strings.TrimSuffix(name, path.Ext(name)) + ext
	}
	return Image{Data: data, MediaType: mediaType, FileName: name}
}

// Source is where an image comes from: a local payload or a remote URL.
//
// Exactly one of the two is set; use Local or Remote to construct.
type Source struct {
	local  *Image
	remote string
}

// Local returns a Source for an in-memory payload.
func Local(img Image) Source { return Source{local: &img} }

// Remote returns a Source that must be fetched from url.
func Remote(url string) Source { return Source{remote: url} }

// IsRemote reports whether the source must be fetched.
func (s Source) IsRemote() bool { return s.local == nil && s.remote != "" }

// IsZero reports whether the source is unset.
func (s Source) IsZero() bool { return s.local == nil && s.remote == "" }

// URL returns the remote URL, or "" for local sources.
func (s Source) URL() string { return s.remote }

// Image returns the local payload and true, or false for remote sources.
func (s Source) Image() (Image, bool) {
	if s.local == nil {
		return Image{}, false
	}
	return *s.local, true
}
