package api

import (
	"context"
	"errors"

	"github.com/matheus3301/chatcore/internal/account"
	"github.com/matheus3301/chatcore/internal/auth"
	"github.com/matheus3301/chatcore/internal/blob"
	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/lifecycle"
	"github.com/matheus3301/chatcore/internal/messaging"
	"github.com/matheus3301/chatcore/internal/resolve"
	"github.com/matheus3301/chatcore/internal/screens"
	"github.com/matheus3301/chatcore/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, resolve.ErrEmptyEmail),
		errors.Is(err, account.ErrEmptyName),
		errors.Is(err, resolve.ErrSelfChat),
		errors.Is(err, messaging.ErrEmptyMessage),
		errors.Is(err, blob.ErrNotImage):
		return codes.InvalidArgument
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, resolve.ErrUserNotFound),
		errors.Is(err, screens.ErrNotOpen):
		return codes.NotFound
	case errors.Is(err, account.ErrEmailTaken):
		return codes.AlreadyExists
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, chatlist.ErrInvalidParticipants):
		return codes.FailedPrecondition
	case errors.Is(err, messaging.ErrNotParticipant):
		return codes.PermissionDenied
	case errors.Is(err, auth.ErrSignedOut):
		return codes.Unauthenticated
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

func toStatus(op string, err error) error {
	return grpcstatus.Errorf(codeOf(err), "%s: %v", op, err)
}
