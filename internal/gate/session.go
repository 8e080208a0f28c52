package gate

import (
	"context"
	"fmt"

	"github.com/pavelanni/mocktest/internal/api"
	"github.com/pavelanni/mocktest/internal/model"
)

// ErrNotSignedIn is returned by Check when no credentials are stored.
var ErrNotSignedIn = &api.Error{Kind: api.KindAuth, Detail: "not signed in"}

// ProfileSource fetches the signed-in user's profile.
type ProfileSource interface {
	Profile(ctx context.Context) (model.Profile, error)
}

// Session decides whether protected screens may be shown.
type Session struct {
	src   ProfileSource
	creds api.CredentialProvider
}

// NewSession returns a gate that validates credentials against src.
// creds may be nil, in which case every check goes to the backend.
func NewSession(src ProfileSource, creds api.CredentialProvider) *Session {
	return &Session{src: src, creds: creds}
}

// Check returns the profile when the stored credentials are accepted by
// the backend. Without credentials it fails with ErrNotSignedIn and makes
// no request.
func (s *Session) Check(ctx context.Context) (model.Profile, error) {
	if s.creds != nil && !s.creds.Present() {
		return model.Profile{}, ErrNotSignedIn
	}
	p, err := s.src.Profile(ctx)
	if err != nil {
		return model.Profile{}, fmt.Errorf("check session: %w", err)
	}
	return p, nil
}
