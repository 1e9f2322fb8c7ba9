package publish

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/cidutil"
	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/generate"
	"weavemint.dev/weavemint/keys"
	"weavemint.dev/weavemint/metadata"
	"weavemint.dev/weavemint/shrink"
	"weavemint.dev/weavemint/weave"
)

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

type recordingUploader struct {
	mu     sync.Mutex
	images []asset.Image
	tags   [][]weave.Tag
	err    error
}

func (u *recordingUploader) Upload(_ context.Context, img asset.Image, tags []weave.Tag) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.images = append(u.images, img)
	u.tags = append(u.tags, tags)
	return cidutil.TxID(append([]byte{byte(len(u.images))}, img.Data...)), nil
}

func (u *recordingUploader) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.images)
}

type countingTransform struct {
	mu sync.Mutex
	n  int
}

func (c *countingTransform) Shrink(_ context.Context, img asset.Image, _ int) (asset.Image, error) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return img, nil
}

func TestRun_SmallImagePassesThrough(t *testing.T) {
	img := noisePNG(t, 100, 100, 1)
	require.Less(t, img.Size(), int64(102400))

	tr := &countingTransform{}
	up := &recordingUploader{}
	p := &Pipeline{
		Compressor: &shrink.Compressor{Transform: tr},
		Uploader:   up,
	}
	res, err := p.Run(context.Background(), Request{
		Name:   "Profile Picture",
		Source: asset.Local(img),
		Traits: metadata.TraitRecord{{Name: "Style", Value: "Cool"}},
	})
	require.NoError(t, err)

	assert.Equal(t, Ready, res.State)
	assert.Equal(t, []State{Idle, Sourcing, Probing, Compressing, Uploading, Encoding, Ready}, res.Transitions)
	assert.Equal(t, 0, res.Passes)
	assert.Equal(t, 0, tr.n)
	assert.Equal(t, 1, up.calls())
	assert.Equal(t, img.Data, up.images[0].Data)
	assert.Equal(t, DefaultReferencePrefix+res.ContentID, res.ContentReference)

	decoded, err := metadata.Decode(res.Encoded)
	require.NoError(t, err)
	assert.Equal(t, "Profile Picture", decoded.Name)
	assert.Equal(t, res.ContentReference, decoded.ContentReference)
	assert.Equal(t, []string{"Style"}, decoded.TraitNames)
	assert.Equal(t, []string{"Cool"}, decoded.TraitValues)
	assert.True(t, decoded.Equal(res.Metadata))
}

func TestRun_ProberServesDefaultCompressor(t *testing.T) {
	img := noisePNG(t, 100, 100, 12)

	var mu sync.Mutex
	var probes int
	prober := shrink.ProberFunc(func(img asset.Image) (shrink.Info, error) {
		mu.Lock()
		probes++
		mu.Unlock()
		return shrink.Probe(img)
	})
	p := &Pipeline{Prober: prober, Uploader: &recordingUploader{}}
	res, err := p.Run(context.Background(), Request{Name: "n", Source: asset.Local(img)})
	require.NoError(t, err)

	assert.Equal(t, Ready, res.State)
	assert.Equal(t, 0, res.Passes)
	assert.Equal(t, 2, probes)
}

func TestRun_IncompressibleImageStillUploads(t *testing.T) {
	img := noisePNG(t, 280, 280, 2)
	require.Greater(t, img.Size(), int64(300_000))

	tr := &countingTransform{}
	up := &recordingUploader{}
	p := &Pipeline{
		Compressor:    &shrink.Compressor{Transform: tr},
		Uploader:      up,
		MaxBytes:      102400,
		MaxIterations: 10,
	}
	res, err := p.Run(context.Background(), Request{Name: "big", Source: asset.Local(img)})
	require.NoError(t, err)

	assert.Equal(t, Ready, res.State)
	assert.Equal(t, 10, tr.n)
	assert.Equal(t, 10, res.Passes)
	assert.False(t, res.WithinBudget)
	require.Equal(t, 1, up.calls())
	assert.Greater(t, up.images[0].Size(), int64(102400))
}

func TestRun_LossyCompressionMeetsBudget(t *testing.T) {
	img := noisePNG(t, 280, 280, 3)
	up := &recordingUploader{}
	p := &Pipeline{Uploader: up}

	res, err := p.Run(context.Background(), Request{Name: "big", Source: asset.Local(img)})
	require.NoError(t, err)
	assert.Equal(t, Ready, res.State)
	assert.GreaterOrEqual(t, res.Passes, 1)
	assert.LessOrEqual(t, res.Passes, DefaultMaxIterations)
	if res.WithinBudget {
		assert.LessOrEqual(t, up.images[0].Size(), DefaultMaxBytes)
	}
	assert.Equal(t, "image/jpeg", up.images[0].MediaType)
}

func TestRun_GenerationWithoutImagesFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images":[]}`))
	}))
	defer srv.Close()

	up := &recordingUploader{}
	p := &Pipeline{
		Generator: &generate.Client{Endpoint: srv.URL, HTTPClient: srv.Client()},
		Uploader:  up,
	}
	res, err := p.Run(context.Background(), Request{Name: "gen", Prompt: "a fox"})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindGeneration))
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, Sourcing, res.FailedAt)
	assert.Equal(t, 0, up.calls())
	assert.Nil(t, res.Encoded)
}

func TestRun_GeneratedImageIsFetched(t *testing.T) {
	img := noisePNG(t, 64, 64, 4)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/text-to-image", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images":[{"url":"` + srv.URL + `/out/fox.png"}]}`))
	})
	mux.HandleFunc("/out/fox.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img.Data)
	})

	up := &recordingUploader{}
	p := &Pipeline{
		Generator: &generate.Client{Endpoint: srv.URL, HTTPClient: srv.Client()},
		Fetcher:   &asset.Fetcher{Client: srv.Client()},
		Uploader:  up,
	}
	res, err := p.Run(context.Background(), Request{Name: "fox", Prompt: "a fox"})
	require.NoError(t, err)
	assert.Equal(t, Ready, res.State)
	require.Equal(t, 1, up.calls())
	assert.Equal(t, img.Data, up.images[0].Data)
	assert.Equal(t, "fox.png", up.images[0].FileName)
}

type failingCredential struct{ err error }

func (c failingCredential) Sign(context.Context, *weave.Transaction) error { return c.err }
func (c failingCredential) PostSigned(context.Context, *weave.Transaction) (string, error) {
	return "", errors.New("unreachable")
}

func TestRun_SignFailureStopsBeforeEncoding(t *testing.T) {
	signErr := errors.New("wallet locked")
	p := &Pipeline{Uploader: &weave.Uploader{Credential: failingCredential{err: signErr}}}

	res, err := p.Run(context.Background(), Request{Name: "x", Source: asset.Local(noisePNG(t, 32, 32, 5))})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindUpload))
	assert.ErrorIs(t, err, signErr)
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, Uploading, res.FailedAt)
	assert.Empty(t, res.ContentID)
	assert.Nil(t, res.Encoded)
	assert.NotContains(t, res.Transitions, Encoding)
}

func TestRun_RealUploaderEndToEnd(t *testing.T) {
	s, err := keys.NewEd25519Signer(bytes.Repeat([]byte{8}, keys.SeedSize))
	require.NoError(t, err)
	cred := &memoryCredential{signer: s}
	p := &Pipeline{
		Uploader:        &weave.Uploader{Credential: cred},
		ReferencePrefix: "http://localhost:8080/",
	}
	req := Request{
		Name:   "same",
		Source: asset.Local(noisePNG(t, 20, 20, 6)),
		Tags:   []weave.Tag{{Name: "Collection", Value: "test"}},
	}

	a, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	b, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.ContentReference, b.ContentReference)
	assert.Equal(t, "http://localhost:8080/"+a.ContentID, a.ContentReference)

	v, ok := weave.Lookup(cred.posted[0].Tags, "Collection")
	assert.True(t, ok)
	assert.Equal(t, "test", v)
}

type memoryCredential struct {
	signer keys.Signer
	posted []*weave.Transaction
}

func (c *memoryCredential) Sign(_ context.Context, tx *weave.Transaction) error {
	return tx.Sign(c.signer)
}

func (c *memoryCredential) PostSigned(_ context.Context, tx *weave.Transaction) (string, error) {
	env, err := tx.Envelope()
	if err != nil {
		return "", err
	}
	c.posted = append(c.posted, tx)
	return cidutil.TxID(env), nil
}

func TestRun_InvalidRequests(t *testing.T) {
	p := &Pipeline{Uploader: &recordingUploader{}}
	cases := map[string]Request{
		"neither":      {Name: "x"},
		"both":         {Name: "x", Prompt: "p", Source: asset.Remote("https://example.com/a.png")},
		"no generator": {Name: "x", Prompt: "p"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := p.Run(context.Background(), req)
			assert.True(t, fault.IsKind(err, fault.KindInvalid))
			assert.Equal(t, Failed, res.State)
			assert.Equal(t, Sourcing, res.FailedAt)
		})
	}
}

func TestRun_NotAnImage(t *testing.T) {
	up := &recordingUploader{}
	p := &Pipeline{Uploader: up}
	res, err := p.Run(context.Background(), Request{Source: asset.Local(asset.Image{Data: []byte("hello")})})
	assert.True(t, fault.IsKind(err, fault.KindProbe))
	assert.Equal(t, Probing, res.FailedAt)
	assert.Equal(t, 0, up.calls())
}

func TestRun_EncodingFailure(t *testing.T) {
	p := &Pipeline{Uploader: &recordingUploader{}}
	res, err := p.Run(context.Background(), Request{
		Name:   "bad \xff name",
		Source: asset.Local(noisePNG(t, 16, 16, 7)),
	})
	assert.True(t, fault.IsKind(err, fault.KindEncoding))
	assert.Equal(t, Encoding, res.FailedAt)
	assert.NotEmpty(t, res.ContentID)
}

func TestRun_CanceledBeforeUpload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	up := &recordingUploader{}
	p := &Pipeline{
		Compressor: compressFunc(func(ctx context.Context, img asset.Image, _ int64, _ int) (shrink.Result, error) {
			cancel()
			return shrink.Result{Image: img, WithinBudget: true}, nil
		}),
		Uploader: up,
	}
	res, err := p.Run(ctx, Request{Source: asset.Local(noisePNG(t, 16, 16, 8))})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Uploading, res.FailedAt)
	assert.Equal(t, 0, up.calls())
}

type compressFunc func(ctx context.Context, img asset.Image, maxBytes int64, maxIterations int) (shrink.Result, error)

func (f compressFunc) Compress(ctx context.Context, img asset.Image, maxBytes int64, maxIterations int) (shrink.Result, error) {
	return f(ctx, img, maxBytes, maxIterations)
}

func TestRun_ConcurrentAttemptsAreIndependent(t *testing.T) {
	up := &recordingUploader{}
	p := &Pipeline{Uploader: up}
	img := noisePNG(t, 24, 24, 9)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Run(context.Background(), Request{Name: "c", Source: asset.Local(img)})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 8, up.calls())
}

func TestState(t *testing.T) {
	assert.Equal(t, "compressing", Compressing.String())
	assert.True(t, Ready.Terminal())
	assert.False(t, Uploading.Terminal())
	assert.False(t, canTransition(Idle, Failed))
	assert.True(t, canTransition(Encoding, Failed))
	assert.False(t, canTransition(Sourcing, Uploading))
	assert.False(t, canTransition(Ready, Failed))
}
