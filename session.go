package bmauth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bridgemark/bmauth/identity"
	"github.com/bridgemark/bmauth/store"
	"github.com/rs/zerolog"
)

// Session is the process-wide session state machine. It holds the
// current principal, the token pair, and a status of Idle, Loading, or
// Error, and it is the only writer of session data into the token store
// outside of a refresh episode.
//
// On construction the session hydrates synchronously from the token
// store, so a restarted process resumes the signed-in state the store
// remembers.
type Session struct {
	store store.TokenStore
	api   *apiClient
	log   zerolog.Logger

	mu      sync.Mutex
	user    *identity.Identity
	access  string
	refresh string
	status  Status
	errMsg  string
}

func newSession(ctx context.Context, st store.TokenStore, api *apiClient, log zerolog.Logger) *Session {
	s := &Session{store: st, api: api, log: log, status: StatusIdle}
	s.hydrate(ctx)
	return s
}

func (s *Session) hydrate(ctx context.Context) {
	user, err := s.store.User(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session hydrate: user unavailable")
	}
	access, err := s.store.Access(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session hydrate: access token unavailable")
	}
	refresh, err := s.store.Refresh(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session hydrate: refresh token unavailable")
	}

	s.mu.Lock()
	s.user, s.access, s.refresh = user, access, refresh
	s.status, s.errMsg = StatusIdle, ""
	s.mu.Unlock()
}

// Login authenticates the credential against the remote API. On success
// the principal and both tokens are populated and persisted and the
// status returns to Idle. On failure the status becomes Error with a
// message from the remote failure reason when one was given; the
// session fields themselves are left unchanged.
func (s *Session) Login(ctx context.Context, cred Credential) (*identity.Identity, error) {
	s.mu.Lock()
	s.status = StatusLoading
	s.errMsg = ""
	s.mu.Unlock()

	out, err := s.api.Authenticate(ctx, cred)
	if err != nil {
		msg := "unable to sign in"
		var ce *CredentialError
		if errors.As(err, &ce) {
			msg = ce.Error()
		}
		s.mu.Lock()
		s.status = StatusError
		s.errMsg = msg
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("user", cred.UserName).Msg("login failed")
		return nil, err
	}

	id := out.asIdentity()
	s.mu.Lock()
	s.user = id
	s.access = out.Token
	s.refresh = out.RefreshToken
	s.status = StatusIdle
	s.mu.Unlock()

	if err := s.persistTokens(ctx, out.Token, out.RefreshToken); err != nil {
		return nil, err
	}
	if err := s.store.SetUser(ctx, id); err != nil {
		return nil, fmt.Errorf("session: persist user: %w", err)
	}
	s.log.Info().Int("userId", id.UserID).Str("roleIds", id.RoleIDs).Msg("login ok")
	return id.Clone(), nil
}

func (s *Session) persistTokens(ctx context.Context, access, refresh string) error {
	if err := s.store.SetAccess(ctx, access); err != nil {
		return fmt.Errorf("session: persist access token: %w", err)
	}
	if err := s.store.SetRefresh(ctx, refresh); err != nil {
		return fmt.Errorf("session: persist refresh token: %w", err)
	}
	return nil
}

// SetTokens replaces the token pair in place, in memory and in the
// token store, without changing status. Used by the refresh episode.
func (s *Session) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	s.access = access
	if refresh != "" {
		s.refresh = refresh
	}
	s.mu.Unlock()
	if refresh == "" {
		// Refresh endpoint may rotate only the access token.
		return s.store.SetAccess(ctx, access)
	}
	return s.persistTokens(ctx, access, refresh)
}

// SetUser replaces the current principal and persists it.
func (s *Session) SetUser(ctx context.Context, id *identity.Identity) error {
	id = id.Clone()
	s.mu.Lock()
	s.user = id
	s.mu.Unlock()
	return s.store.SetUser(ctx, id)
}

// UpdateUser merges a partial profile edit into the current principal
// and persists the result. A no-op when nobody is signed in.
func (s *Session) UpdateUser(ctx context.Context, patch identity.Patch) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	s.user.Apply(patch)
	id := s.user.Clone()
	s.mu.Unlock()
	return s.store.SetUser(ctx, id)
}

// Logout clears the principal, both tokens, and any error, and empties
// the token store. The remote invalidation call is best effort; its
// failure never blocks the local teardown. Idempotent.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	access := s.access
	s.mu.Unlock()

	if access != "" {
		if err := s.api.Logout(ctx, access); err != nil {
			s.log.Debug().Err(err).Msg("remote logout failed; clearing locally")
		}
	}
	return s.clearLocal(ctx)
}

// clearLocal tears the session down without calling the remote API.
// Used by logout, by login-rejection teardown, and by the refresh
// episode when the refresh token is no longer honoured.
func (s *Session) clearLocal(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.access = ""
	s.refresh = ""
	s.status = StatusIdle
	s.errMsg = ""
	s.mu.Unlock()

	if err := s.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("session: clear store: %w", err)
	}
	return nil
}

// User returns a copy of the current principal, or nil when signed out.
func (s *Session) User() *identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// AccessToken returns the current access token, or "" when signed out.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// RefreshToken returns the current refresh token, or "" when signed out.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// Status returns the state machine's phase.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the last login failure message, or "" outside StatusError.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}
