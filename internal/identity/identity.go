// Package identity resolves who is calling: a signed-in user from a bearer token, or a guest.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/victornm/bananaquiz/internal/errors"
)

const guestPrefix = "guest_"

type Identity struct {
	UserID   string
	Username string
	// Guest identities are local only, nothing is stored remotely for them.
	Guest bool
}

type Config struct {
	Secret string
	Now    func() time.Time
}

// Verifier checks HS256 tokens carrying the user id in "sub" (or "id") and an optional "username".
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(c Config) *Verifier {
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Verifier{
		secret: []byte(c.Secret),
		now:    c.Now,
	}
}

func (v *Verifier) Verify(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil || !t.Valid {
		return Identity{}, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("invalid token"), errors.WithCause(err))
	}

	id, _ := claims["sub"].(string)
	if id == "" {
		id, _ = claims["id"].(string)
	}
	if id == "" || strings.HasPrefix(id, guestPrefix) {
		return Identity{}, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("token has no user id"))
	}

	username, _ := claims["username"].(string)
	return Identity{UserID: id, Username: username}, nil
}

// Issue signs a token for the user, valid for ttl.
func (v *Verifier) Issue(userID, username string, ttl time.Duration) (string, error) {
	now := v.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})

	s, err := t.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return s, nil
}

// Guest returns the guest identity for id, or a new one when id is not a guest id.
func Guest(id string) Identity {
	if !strings.HasPrefix(id, guestPrefix) || len(id) == len(guestPrefix) {
		id = guestPrefix + uuid.NewString()
	}

	return Identity{UserID: id, Username: "Guest", Guest: true}
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
