package shrink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/logging"
)

// Result is the outcome of a Compress call.
type Result struct {
	Image asset.Image
	Info  Info
	// Passes is the number of transform passes that ran (0 for pass-through).
	Passes int
	// WithinBudget reports Info.Size <= the requested budget.
	WithinBudget bool
	// Trace holds the probe of the input followed by one probe per pass.
	Trace []Info
}

// DefaultMaxPixels caps width*height of images handed to a Transform.
const DefaultMaxPixels = 50_000_000

// Compressor drives images under a byte budget. The zero value uses Lossy and
// Probe. A Compressor holds no per-call state and is safe for concurrent use.
type Compressor struct {
	Transform Transform
	Prober    Prober
	// MaxPixels bounds the decoded size of any image that needs a pass.
	// Zero means DefaultMaxPixels.
	MaxPixels int64
	Logger    *slog.Logger
}

// Compress returns the first image that fits in maxBytes, or the image produced
// by the last of maxIterations passes when none fits. Exceeding the budget is not
// an error; check Result.WithinBudget.
func (c *Compressor) Compress(ctx context.Context, img asset.Image, maxBytes int64, maxIterations int) (Result, error) {
	const op = "shrink.compress"
	if maxBytes <= 0 {
		return Result{}, fault.Newf(fault.KindInvalid, op, "max bytes must be positive, got %d", maxBytes)
	}
	if maxIterations < 1 {
		return Result{}, fault.Newf(fault.KindInvalid, op, "max iterations must be at least 1, got %d", maxIterations)
	}

	info, err := c.probe(img)
	if err != nil {
		return Result{}, err
	}
	res := Result{Image: img, Info: info, Trace: []Info{info}}

	for pass := 1; res.Info.Size > maxBytes && pass <= maxIterations; pass++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		if err := checkPixels(op, res.Info.Width, res.Info.Height, c.maxPixels()); err != nil {
			return Result{}, err
		}
		next, err := c.transform().Shrink(ctx, res.Image, pass)
		if err != nil {
			return Result{}, asTransformError(op, pass, err)
		}
		nextInfo, err := c.probe(next)
		if err != nil {
			return Result{}, err
		}
		c.logger().Debug("compression pass",
			"pass", pass,
			"size", humanize.Bytes(uint64(nextInfo.Size)),
			"budget", humanize.Bytes(uint64(maxBytes)),
			"width", nextInfo.Width,
			"height", nextInfo.Height,
		)
		res.Image, res.Info, res.Passes = next, nextInfo, pass
		res.Trace = append(res.Trace, nextInfo)
	}

	res.WithinBudget = res.Info.Size <= maxBytes
	if !res.WithinBudget {
		c.logger().Warn("image still over budget after final pass",
			"passes", res.Passes,
			"size", humanize.Bytes(uint64(res.Info.Size)),
			"budget", humanize.Bytes(uint64(maxBytes)),
		)
	}
	return res, nil
}

func (c *Compressor) probe(img asset.Image) (Info, error) {
	var p Prober = ProberFunc(Probe)
	if c != nil && c.Prober != nil {
		p = c.Prober
	}
	info, err := p.Probe(img)
	if err != nil {
		if fault.IsKind(err, fault.KindProbe) {
			return Info{}, err
		}
		return Info{}, fault.Wrap(fault.KindProbe, "shrink.probe", "probing image", err)
	}
	return info, nil
}

func (c *Compressor) maxPixels() int64 {
	if c == nil || c.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return c.MaxPixels
}

func checkPixels(op string, width, height int, limit int64) error {
	if px := int64(width) * int64(height); px > limit {
		return fault.Newf(fault.KindTransform, op, "image is %dx%d (%d pixels), limit is %d", width, height, px, limit)
	}
	return nil
}

func (c *Compressor) transform() Transform {
	if c == nil || c.Transform == nil {
		return Lossy{}
	}
	return c.Transform
}

func (c *Compressor) logger() *slog.Logger {
	if c == nil {
		return logging.Discard()
	}
	return logging.OrDiscard(c.Logger)
}

func asTransformError(op string, pass int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if fault.IsKind(err, fault.KindTransform) {
		return err
	}
	return fault.Wrap(fault.KindTransform, op, fmt.Sprintf("pass %d", pass), err)
}
