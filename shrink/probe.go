package shrink

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
)

// Info describes an image as decoded from its bytes.
type Info struct {
	Width     int
	Height    int
	Size      int64
	Format    string
	MediaType string
}

// Prober inspects an image payload.
type Prober interface {
	Probe(img asset.Image) (Info, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(img asset.Image) (Info, error)

func (f ProberFunc) Probe(img asset.Image) (Info, error) { return f(img) }

// Probe decodes the image header to obtain true dimensions. Declared metadata on
// img is ignored. Payloads that do not decode fail with fault.KindProbe.
func Probe(img asset.Image) (Info, error) {
	const op = "shrink.probe"
	if len(img.Data) == 0 {
		return Info{}, fault.New(fault.KindProbe, op, "empty payload")
	}

	rc := img.Open()
	defer rc.Close()

	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return Info{}, fault.Wrap(fault.KindProbe, op, "decoding image header", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fault.Newf(fault.KindProbe, op, "invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return Info{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Size:      img.Size(),
		Format:    format,
		MediaType: mimetype.Detect(img.Data).String(),
	}, nil
}
