package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"weavemint.dev/weavemint/cidutil"
	"weavemint.dev/weavemint/logging"
	"weavemint.dev/weavemint/storage"
	"weavemint.dev/weavemint/weave"
)

// Server accepts signed envelopes and stores them in a storage.CAS. A
// transaction id is the CID of its envelope bytes.
type Server struct {
	UnimplementedGatewayServer
	CAS    storage.CAS
	Logger *slog.Logger
}

func (s *Server) Post(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	env := in.GetValue()
	tx, err := weave.DecodeEnvelope(env)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", ErrInvalidEnvelope, err))
	}
	if err := tx.Verify(); err != nil {
		return nil, toStatus(err)
	}

	expected, err := cidutil.Sum(env)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.CAS.Put(env)
	if err != nil {
		return nil, toStatus(err)
	}
	if !id.Equals(expected) {
		return nil, toStatus(storage.ErrCIDMismatch)
	}

	ct, _ := tx.Tag(weave.TagContentType)
	logging.OrDiscard(s.Logger).Info("stored transaction",
		"id", id.String(),
		"owner", tx.Owner,
		"content_type", ct,
		"size", humanize.Bytes(uint64(len(tx.Data))),
	)
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	id, err := cidutil.Parse(in.GetValue())
	if err != nil {
		return nil, toStatus(storage.ErrInvalidCID)
	}
	b, err := s.CAS.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	got, err := cidutil.Sum(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	if !got.Equals(id) {
		return nil, toStatus(storage.ErrCIDMismatch)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	id, err := cidutil.Parse(in.GetValue())
	if err != nil {
		return nil, toStatus(storage.ErrInvalidCID)
	}
	return wrapperspb.Bool(s.CAS.Has(id)), nil
}
