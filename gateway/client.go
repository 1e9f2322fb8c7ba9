package gateway

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"weavemint.dev/weavemint/cidutil"
	"weavemint.dev/weavemint/storage"
	"weavemint.dev/weavemint/weave"
)

// Client talks to a Gateway service. It satisfies wallet.Poster.
type Client struct {
	cc     *grpc.ClientConn
	client GatewayClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewGatewayClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Post submits an encoded envelope and returns its transaction id. The id is
// checked against the envelope bytes.
func (c *Client) Post(ctx context.Context, envelope []byte) (string, error) {
	expected := cidutil.TxID(envelope)

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Post(ctx, wrapperspb.Bytes(envelope))
	if err != nil {
		return "", fromStatus(err)
	}
	if reply.GetValue() != expected {
		return "", ErrIDMismatch
	}
	return reply.GetValue(), nil
}

// Get fetches and decodes the transaction stored under id.
func (c *Client) Get(ctx context.Context, id string) (*weave.Transaction, error) {
	want, err := cidutil.Parse(id)
	if err != nil {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Get(ctx, wrapperspb.String(id))
	if err != nil {
		return nil, fromStatus(err)
	}
	b := reply.GetValue()
	got, err := cidutil.Sum(b)
	if err != nil {
		return nil, err
	}
	if !got.Equals(want) {
		return nil, storage.ErrCIDMismatch
	}
	return weave.DecodeEnvelope(b)
}

func (c *Client) Has(ctx context.Context, id string) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Has(ctx, wrapperspb.String(id))
	if err != nil {
		return false, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
