package asset

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"weavemint.dev/weavemint/fault"
)

// DefaultMaxFetchBytes bounds remote downloads.
const DefaultMaxFetchBytes = 64 << 20

// Fetcher downloads remote images.
type Fetcher struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// MaxBytes bounds the body size; 0 uses DefaultMaxFetchBytes.
	MaxBytes int64
}

// Fetch downloads url into an Image. Any non-2xx response fails with a
// fault.KindFetch error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Image, error) {
	const op = "asset.fetch"

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Image{}, fault.Newf(fault.KindFetch, op, "unsupported url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Image{}, fault.Wrap(fault.KindFetch, op, "creating request", err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return Image{}, fault.Wrap(fault.KindFetch, op, "sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Image{}, fault.Newf(fault.KindFetch, op, "unexpected status %d from %s", resp.StatusCode, u.Host)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxFetchBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Image{}, fault.Wrap(fault.KindFetch, op, "reading body", err)
	}
	if int64(len(data)) > limit {
		return Image{}, fault.Newf(fault.KindFetch, op, "body exceeds %d bytes", limit)
	}

	return Image{
		Data:      data,
		MediaType: mediaType(resp.Header.Get("Content-Type"), data),
		FileName:  fileName(u),
	}, nil
}

func (f *Fetcher) client() *http.Client {
	if f == nil || f.Client == nil {
		return http.DefaultClient
	}
	return f.Client
}

// mediaType prefers a declared image/* header and falls back to sniffing.
func mediaType(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	if len(data) == 0 {
		return DefaultMediaType
	}
	return mimetype.Detect(data).String()
}

func fileName(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return ""
	}
	return base
}
