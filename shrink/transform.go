package shrink

import (
	"bytes"
	"context"
	"image"

	"github.com/disintegration/imaging"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
)

// Transform derives a smaller image from img. pass is 1-based.
type Transform interface {
	Shrink(ctx context.Context, img asset.Image, pass int) (asset.Image, error)
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(ctx context.Context, img asset.Image, pass int) (asset.Image, error)

func (f TransformFunc) Shrink(ctx context.Context, img asset.Image, pass int) (asset.Image, error) {
	return f(ctx, img, pass)
}

const (
	DefaultInitialQuality = 80
	DefaultQualityStep    = 10
	DefaultMinQuality     = 30
	DefaultScaleFactor    = 0.85
)

// Lossy re-encodes as JPEG, lowering quality and dimensions on every pass.
// Zero fields take the Default* values.
type Lossy struct {
	InitialQuality int
	QualityStep    int
	MinQuality     int
	// ScaleFactor in (0, 1] applied to the width each pass; height follows the
	// aspect ratio.
	ScaleFactor float64
	// MaxPixels bounds width*height before a full decode. Zero means
	// DefaultMaxPixels.
	MaxPixels int64
}

// Quality returns the JPEG quality used for pass.
func (l Lossy) Quality(pass int) int {
	initial, step, floor := l.InitialQuality, l.QualityStep, l.MinQuality
	if initial <= 0 {
		initial = DefaultInitialQuality
	}
	if step <= 0 {
		step = DefaultQualityStep
	}
	if floor <= 0 {
		floor = DefaultMinQuality
	}
	q := initial - (pass-1)*step
	if q < floor {
		q = floor
	}
	if q > 100 {
		q = 100
	}
	return q
}

func (l Lossy) scale() float64 {
	if l.ScaleFactor <= 0 || l.ScaleFactor > 1 {
		return DefaultScaleFactor
	}
	return l.ScaleFactor
}

func (l Lossy) Shrink(ctx context.Context, img asset.Image, pass int) (asset.Image, error) {
	const op = "shrink.lossy"
	if err := ctx.Err(); err != nil {
		return asset.Image{}, err
	}

	limit := l.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	hdr := img.Open()
	cfg, _, err := image.DecodeConfig(hdr)
	hdr.Close()
	if err != nil {
		return asset.Image{}, fault.Wrap(fault.KindTransform, op, "decoding image header", err)
	}
	if err := checkPixels(op, cfg.Width, cfg.Height, limit); err != nil {
		return asset.Image{}, err
	}

	rc := img.Open()
	defer rc.Close()

	src, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return asset.Image{}, fault.Wrap(fault.KindTransform, op, "decoding image", err)
	}

	width := int(float64(src.Bounds().Dx()) * l.scale())
	if width < 1 {
		width = 1
	}
	dst := imaging.Resize(src, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(l.Quality(pass))); err != nil {
		return asset.Image{}, fault.Wrap(fault.KindTransform, op, "encoding jpeg", err)
	}
	return img.WithData(buf.Bytes(), "image/jpeg", ".jpg"), nil
}
