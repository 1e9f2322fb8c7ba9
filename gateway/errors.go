package gateway

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"weavemint.dev/weavemint/keys"
	"weavemint.dev/weavemint/storage"
)

var (
	ErrInvalidEnvelope = errors.New("gateway: invalid envelope")
	ErrIDMismatch      = errors.New("gateway: transaction id mismatch")
)

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, storage.ErrNotFound.Error())
	case errors.Is(err, storage.ErrInvalidCID):
		return status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	case errors.Is(err, ErrInvalidEnvelope):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, keys.ErrBadSignature):
		return status.Error(codes.Unauthenticated, keys.ErrBadSignature.Error())
	case errors.Is(err, storage.ErrCIDMismatch), errors.Is(err, ErrIDMismatch):
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus maps gRPC status codes back to domain errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.Unauthenticated:
		return keys.ErrBadSignature
	case codes.InvalidArgument:
		if st.Message() == storage.ErrInvalidCID.Error() {
			return storage.ErrInvalidCID
		}
		return errors.Join(ErrInvalidEnvelope, errors.New(st.Message()))
	case codes.DataLoss:
		return storage.ErrCIDMismatch
	default:
		return err
	}
}
