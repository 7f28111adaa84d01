package identity

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	MetadataAuthorization = "authorization"
	MetadataGuestID       = "x-guest-id"
)

// UnaryServerInterceptor puts the caller's identity in the context. Calls without a token run as a
// guest, the guest id is echoed in the x-guest-id response header so the client can keep it.
func (v *Verifier) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id, err := v.fromMetadata(ctx)
		if err != nil {
			return nil, err
		}

		if id.Guest {
			if err := grpc.SetHeader(ctx, metadata.Pairs(MetadataGuestID, id.UserID)); err != nil {
				slog.WarnContext(ctx, "identity: set guest header", "error", err)
			}
		}

		return handler(WithIdentity(ctx, id), req)
	}
}

func (v *Verifier) fromMetadata(ctx context.Context) (Identity, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	if token := bearer(md.Get(MetadataAuthorization)); token != "" {
		return v.Verify(token)
	}

	var guestID string
	if vals := md.Get(MetadataGuestID); len(vals) > 0 {
		guestID = vals[0]
	}

	return Guest(guestID), nil
}

func bearer(vals []string) string {
	if len(vals) == 0 {
		return ""
	}

	const prefix = "bearer "
	v := strings.TrimSpace(vals[0])
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}

	return ""
}
