package shrink

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
)

// noisePNG returns an incompressible PNG of roughly w*h*4 bytes.
func noisePNG(t *testing.T, w, h int, seed uint64) asset.Image {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range img.Pix {
		img.Pix[i] = byte(r.Uint32())
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return asset.Image{Data: buf.Bytes(), MediaType: "image/png", FileName: "noise.png"}
}

func countingTransform(n *int, inner Transform) Transform {
	return TransformFunc(func(ctx context.Context, img asset.Image, pass int) (asset.Image, error) {
		*n++
		return inner.Shrink(ctx, img, pass)
	})
}

var identity = TransformFunc(func(ctx context.Context, img asset.Image, pass int) (asset.Image, error) {
	return img, nil
})

func TestProbe_ReadsTrueDimensions(t *testing.T) {
	img := noisePNG(t, 37, 21, 1)
	img.MediaType = "image/gif"

	info, err := Probe(img)
	require.NoError(t, err)
	assert.Equal(t, 37, info.Width)
	assert.Equal(t, 21, info.Height)
	assert.Equal(t, int64(len(img.Data)), info.Size)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, "image/png", info.MediaType)
}

func TestProbe_RejectsGarbage(t *testing.T) {
	_, err := Probe(asset.Image{Data: []byte("definitely not an image")})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindProbe))

	_, err = Probe(asset.Image{})
	assert.True(t, fault.IsKind(err, fault.KindProbe))
}

func TestCompress_PassThroughWhenUnderBudget(t *testing.T) {
	img := noisePNG(t, 100, 100, 2)
	require.Less(t, img.Size(), int64(100*1024))

	var calls int
	c := &Compressor{Transform: countingTransform(&calls, Lossy{})}
	res, err := c.Compress(context.Background(), img, 100*1024, 10)
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, res.Passes)
	assert.True(t, res.WithinBudget)
	assert.Equal(t, img.Data, res.Image.Data)
	assert.Len(t, res.Trace, 1)
}

func TestCompress_TerminatesAtMaxIterations(t *testing.T) {
	img := noisePNG(t, 274, 274, 3)
	require.Greater(t, img.Size(), int64(102400))

	var calls int
	c := &Compressor{Transform: countingTransform(&calls, identity)}
	res, err := c.Compress(context.Background(), img, 102400, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, calls)
	assert.Equal(t, 10, res.Passes)
	assert.False(t, res.WithinBudget)
	assert.Greater(t, res.Info.Size, int64(102400))
	assert.Len(t, res.Trace, 11)
}

func TestCompress_StopsAtFirstPassInBudget(t *testing.T) {
	start := noisePNG(t, 200, 200, 4)
	sizes := map[int]int{1: 180, 2: 160, 3: 60, 4: 20}

	var calls int
	shrinker := TransformFunc(func(ctx context.Context, img asset.Image, pass int) (asset.Image, error) {
		return noisePNG(t, sizes[pass], sizes[pass], uint64(pass)), nil
	})
	c := &Compressor{Transform: countingTransform(&calls, shrinker)}
	res, err := c.Compress(context.Background(), start, 20*1024, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Passes)
	assert.True(t, res.WithinBudget)
	assert.Equal(t, 60, res.Info.Width)
}

func TestCompress_LossyConvergesOrExhausts(t *testing.T) {
	img := noisePNG(t, 300, 300, 5)
	const budget = 40 * 1024
	const iterations = 10

	res, err := (&Compressor{}).Compress(context.Background(), img, budget, iterations)
	require.NoError(t, err)

	assert.True(t, res.Info.Size <= budget || res.Passes == iterations)
	assert.GreaterOrEqual(t, res.Passes, 1)
	assert.Equal(t, "image/jpeg", res.Image.MediaType)
	assert.Equal(t, "noise.jpg", res.Image.FileName)
	_, err = jpeg.DecodeConfig(bytes.NewReader(res.Image.Data))
	require.NoError(t, err)
}

func TestCompress_TransformErrorKind(t *testing.T) {
	img := noisePNG(t, 64, 64, 6)
	failing := TransformFunc(func(ctx context.Context, img asset.Image, pass int) (asset.Image, error) {
		return asset.Image{}, errors.New("codec exploded")
	})
	_, err := (&Compressor{Transform: failing}).Compress(context.Background(), img, 10, 3)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindTransform))
}

func TestCompress_PostPassProbeErrorKind(t *testing.T) {
	img := noisePNG(t, 64, 64, 7)
	corrupting := TransformFunc(func(ctx context.Context, img asset.Image, pass int) (asset.Image, error) {
		return asset.Image{Data: []byte("junk")}, nil
	})
	_, err := (&Compressor{Transform: corrupting}).Compress(context.Background(), img, 10, 3)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindProbe))
}

func TestCompress_InvalidArguments(t *testing.T) {
	img := noisePNG(t, 8, 8, 8)
	_, err := (&Compressor{}).Compress(context.Background(), img, 0, 1)
	assert.True(t, fault.IsKind(err, fault.KindInvalid))
	_, err = (&Compressor{}).Compress(context.Background(), img, 1, 0)
	assert.True(t, fault.IsKind(err, fault.KindInvalid))
}

func TestCompress_CanceledContext(t *testing.T) {
	img := noisePNG(t, 64, 64, 9)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Compressor{Transform: identity}).Compress(ctx, img, 10, 3)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLossy_QualitySteps(t *testing.T) {
	l := Lossy{}
	assert.Equal(t, 80, l.Quality(1))
	assert.Equal(t, 70, l.Quality(2))
	assert.Equal(t, 30, l.Quality(6))
	assert.Equal(t, 30, l.Quality(50))

	custom := Lossy{InitialQuality: 95, QualityStep: 5, MinQuality: 50}
	assert.Equal(t, 90, custom.Quality(2))
	assert.Equal(t, 50, custom.Quality(20))
}

func TestLossy_RejectsUndecodable(t *testing.T) {
	_, err := Lossy{}.Shrink(context.Background(), asset.Image{Data: []byte("nope")}, 1)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindTransform))
}

func TestLossy_ShrinksDimensions(t *testing.T) {
	img := noisePNG(t, 100, 50, 10)
	out, err := Lossy{ScaleFactor: 0.5}.Shrink(context.Background(), img, 1)
	require.NoError(t, err)
	info, err := Probe(out)
	require.NoError(t, err)
	assert.Equal(t, 50, info.Width)
	assert.Equal(t, 25, info.Height)
	assert.Equal(t, "jpeg", info.Format)
}

// blankPNG compresses to a few hundred bytes regardless of its dimensions.
func blankPNG(t *testing.T, w, h int) asset.Image {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	require.NoError(t, enc.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return asset.Image{Data: buf.Bytes(), MediaType: "image/png", FileName: "blank.png"}
}

func TestCompress_RejectsOversizedDimensions(t *testing.T) {
	img := blankPNG(t, 8000, 7000)
	require.Less(t, img.Size(), int64(1<<20))

	var calls int
	c := &Compressor{Transform: countingTransform(&calls, Lossy{})}
	_, err := c.Compress(context.Background(), img, 100, 1)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindTransform))
	assert.Equal(t, 0, calls)
}

func TestCompress_PixelLimitOnlyAppliesToPasses(t *testing.T) {
	img := noisePNG(t, 64, 64, 11)

	res, err := (&Compressor{MaxPixels: 1000}).Compress(context.Background(), img, img.Size(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Passes)

	_, err = (&Compressor{MaxPixels: 1000}).Compress(context.Background(), img, 10, 1)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindTransform))
}

func TestLossy_RejectsOversizedDimensions(t *testing.T) {
	img := noisePNG(t, 64, 64, 12)
	_, err := Lossy{MaxPixels: 1000}.Shrink(context.Background(), img, 1)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindTransform))

	_, err = Lossy{MaxPixels: 64 * 64}.Shrink(context.Background(), img, 1)
	require.NoError(t, err)
}
