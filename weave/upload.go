package weave

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/logging"
)

// Credential signs transactions and submits them to the network.
type Credential interface {
	// Sign moves tx from Unsigned to Signed.
	Sign(ctx context.Context, tx *Transaction) error
	// PostSigned submits a signed transaction and returns its id.
	PostSigned(ctx context.Context, tx *Transaction) (string, error)
}

// RemoteFetcher resolves a URL into image bytes.
type RemoteFetcher interface {
	Fetch(ctx context.Context, url string) (asset.Image, error)
}

// Uploader turns images into posted transactions. Fields other than
// Credential are optional.
type Uploader struct {
	AppName    string
	Function   string
	Credential Credential
	Fetcher    RemoteFetcher
	Logger     *slog.Logger

	// newAnchor is replaced in tests.
	newAnchor func() string
}

// Upload posts img with the reserved tags followed by extra and returns the
// transaction id. Each call creates a new transaction, so repeated uploads of
// the same bytes return distinct ids. On failure no id is returned.
func (u *Uploader) Upload(ctx context.Context, img asset.Image, extra []Tag) (string, error) {
	const op = "weave.upload"
	if u.Credential == nil {
		return "", fault.New(fault.KindInvalid, op, "no credential configured")
	}
	if err := ctx.Err(); err != nil {
		return "", fault.Wrap(fault.KindUpload, op, "upload aborted", err)
	}

	contentType := img.MediaType
	if contentType == "" {
		contentType = asset.DefaultMediaType
	}
	fileName := img.FileName
	if fileName == "" {
		fileName = UnknownFileName
	}
	tags := buildTags(u.appName(), contentType, u.function(), fileName, extra)
	tx := NewTransaction(u.anchor(), img.Data, tags)

	if err := u.Credential.Sign(ctx, tx); err != nil {
		return "", fault.Wrap(fault.KindUpload, "weave.sign", "signing transaction", err)
	}
	if tx.State() != Signed {
		return "", fault.New(fault.KindUpload, "weave.sign", "credential did not sign the transaction")
	}
	id, err := u.Credential.PostSigned(ctx, tx)
	if err != nil {
		return "", fault.Wrap(fault.KindUpload, "weave.post", "posting transaction", err)
	}
	if id == "" {
		return "", fault.New(fault.KindUpload, "weave.post", "network returned an empty transaction id")
	}
	if err := tx.MarkPosted(id); err != nil {
		return "", fault.Wrap(fault.KindUpload, op, "recording transaction id", err)
	}

	logging.OrDiscard(u.Logger).Info("uploaded image",
		"id", id,
		"size", humanize.Bytes(uint64(img.Size())),
		"content_type", contentType,
		"file_name", fileName,
	)
	return id, nil
}

// UploadSource resolves src, fetching remote URLs, then uploads it.
func (u *Uploader) UploadSource(ctx context.Context, src asset.Source, extra []Tag) (string, error) {
	if src.IsZero() {
		return "", fault.New(fault.KindInvalid, "weave.upload", "empty image source")
	}
	if img, ok := src.Image(); ok {
		return u.Upload(ctx, img, extra)
	}
	f := u.Fetcher
	if f == nil {
		f = &asset.Fetcher{}
	}
	img, err := f.Fetch(ctx, src.URL())
	if err != nil {
		return "", err
	}
	return u.Upload(ctx, img, extra)
}

func (u *Uploader) appName() string {
	if u.AppName == "" {
		return DefaultAppName
	}
	return u.AppName
}

func (u *Uploader) function() string {
	if u.Function == "" {
		return DefaultFunction
	}
	return u.Function
}

func (u *Uploader) anchor() string {
	if u.newAnchor != nil {
		return u.newAnchor()
	}
	return uuid.NewString()
}
