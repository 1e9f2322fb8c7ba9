// Package publish runs one image from source to encoded token metadata:
// source it, fit it to the byte budget, upload it, and encode the metadata
// that references it.
//
// A Pipeline never mints; the caller passes Result.Encoded to the minting
// call once the attempt reaches Ready.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/logging"
	"weavemint.dev/weavemint/metadata"
	"weavemint.dev/weavemint/shrink"
	"weavemint.dev/weavemint/weave"
)

const (
	DefaultMaxBytes        int64 = 102400
	DefaultMaxIterations         = 10
	DefaultReferencePrefix       = "https://arweave.net/"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (asset.Image, error)
}

type Compressor interface {
	Compress(ctx context.Context, img asset.Image, maxBytes int64, maxIterations int) (shrink.Result, error)
}

type Uploader interface {
	Upload(ctx context.Context, img asset.Image, tags []weave.Tag) (string, error)
}

// Request describes one publish attempt. Exactly one of Source and Prompt
// must be set.
type Request struct {
	Name   string
	Source asset.Source
	Prompt string
	Traits metadata.TraitRecord
	// Tags are appended after the reserved upload tags.
	Tags []weave.Tag
}

// Result records how far an attempt got. It is returned alongside any error.
type Result struct {
	State State
	// FailedAt is the state that failed; meaningful only when State is Failed.
	FailedAt    State
	Transitions []State

	Image        asset.Image
	Passes       int
	WithinBudget bool

	ContentID        string
	ContentReference string
	Metadata         metadata.PublishMetadata
	Encoded          []byte
}

// Pipeline wires the publish stages together. Generator is needed only for
// prompt requests; Compressor and Fetcher default to shrink.Compressor and
// asset.Fetcher, and Prober to shrink.Probe. Prober also serves the default
// Compressor. A Pipeline holds no per-attempt state.
type Pipeline struct {
	Generator  Generator
	Fetcher    Fetcher
	Compressor Compressor
	Prober     shrink.Prober
	Uploader   Uploader

	MaxBytes        int64
	MaxIterations   int
	ReferencePrefix string
	Logger          *slog.Logger
}

// attempt carries the mutable state of one Run.
type attempt struct {
	res *Result
	log *slog.Logger
}

func (a *attempt) enter(to State) {
	if !canTransition(a.res.State, to) {
		panic(fmt.Sprintf("publish: invalid transition %s -> %s", a.res.State, to))
	}
	a.log.Debug("publish transition", "from", a.res.State, "to", to)
	a.res.State = to
	a.res.Transitions = append(a.res.Transitions, to)
}

func (a *attempt) fail(err error) (*Result, error) {
	a.res.FailedAt = a.res.State
	a.enter(Failed)
	a.log.Warn("publish failed", "at", a.res.FailedAt, "kind", fault.KindOf(err), "error", err)
	return a.res, err
}

// Run executes one attempt. Errors from stages are returned unchanged and the
// attempt stops; nothing is retried. Cancellation is checked between stages,
// but a transaction that was already posted stays posted.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	a := &attempt{
		res: &Result{State: Idle, Transitions: []State{Idle}},
		log: logging.OrDiscard(p.Logger),
	}

	a.enter(Sourcing)
	img, err := p.source(ctx, req)
	if err != nil {
		return a.fail(err)
	}

	a.enter(Probing)
	if err := ctx.Err(); err != nil {
		return a.fail(fmt.Errorf("publish: %w", err))
	}
	info, err := p.prober().Probe(img)
	if err != nil {
		return a.fail(err)
	}
	a.log.Info("sourced image",
		"size", humanize.Bytes(uint64(info.Size)),
		"budget", humanize.Bytes(uint64(p.maxBytes())),
		"width", info.Width,
		"height", info.Height,
	)

	a.enter(Compressing)
	cr, err := p.compressor().Compress(ctx, img, p.maxBytes(), p.maxIterations())
	if err != nil {
		return a.fail(err)
	}
	a.res.Image = cr.Image
	a.res.Passes = cr.Passes
	a.res.WithinBudget = cr.WithinBudget

	a.enter(Uploading)
	if err := ctx.Err(); err != nil {
		return a.fail(fmt.Errorf("publish: %w", err))
	}
	if p.Uploader == nil {
		return a.fail(fault.New(fault.KindInvalid, "publish.upload", "no uploader configured"))
	}
	id, err := p.Uploader.Upload(ctx, cr.Image, req.Tags)
	if err != nil {
		return a.fail(err)
	}
	a.res.ContentID = id
	a.res.ContentReference = p.referencePrefix() + id

	a.enter(Encoding)
	md := metadata.New(req.Name, a.res.ContentReference, req.Traits)
	encoded, err := metadata.Encode(md)
	if err != nil {
		return a.fail(err)
	}
	a.res.Metadata = md
	a.res.Encoded = encoded

	a.enter(Ready)
	a.log.Info("publish ready",
		"reference", a.res.ContentReference,
		"passes", a.res.Passes,
		"within_budget", a.res.WithinBudget,
		"metadata_bytes", len(encoded),
	)
	return a.res, nil
}

func (p *Pipeline) source(ctx context.Context, req Request) (asset.Image, error) {
	const op = "publish.source"
	hasPrompt := req.Prompt != ""
	switch {
	case req.Source.IsZero() && !hasPrompt:
		return asset.Image{}, fault.New(fault.KindInvalid, op, "either an image source or a prompt is required")
	case !req.Source.IsZero() && hasPrompt:
		return asset.Image{}, fault.New(fault.KindInvalid, op, "image source and prompt are mutually exclusive")
	}
	if err := ctx.Err(); err != nil {
		return asset.Image{}, fmt.Errorf("%s: %w", op, err)
	}

	src := req.Source
	if hasPrompt {
		if p.Generator == nil {
			return asset.Image{}, fault.New(fault.KindInvalid, op, "no generator configured")
		}
		url, err := p.Generator.Generate(ctx, req.Prompt)
		if err != nil {
			return asset.Image{}, err
		}
		src = asset.Remote(url)
	}
	if img, ok := src.Image(); ok {
		return img, nil
	}
	return p.fetcher().Fetch(ctx, src.URL())
}

func (p *Pipeline) maxBytes() int64 {
	if p.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return p.MaxBytes
}

func (p *Pipeline) maxIterations() int {
	if p.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return p.MaxIterations
}

func (p *Pipeline) referencePrefix() string {
	if p.ReferencePrefix == "" {
		return DefaultReferencePrefix
	}
	return p.ReferencePrefix
}

func (p *Pipeline) compressor() Compressor {
	if p.Compressor == nil {
		return &shrink.Compressor{Prober: p.Prober, Logger: p.Logger}
	}
	return p.Compressor
}

func (p *Pipeline) prober() shrink.Prober {
	if p.Prober == nil {
		return shrink.ProberFunc(shrink.Probe)
	}
	return p.Prober
}

func (p *Pipeline) fetcher() Fetcher {
	if p.Fetcher == nil {
		return &asset.Fetcher{}
	}
	return p.Fetcher
}
