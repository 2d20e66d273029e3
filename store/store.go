// Package store provides the token store: the single component allowed
// to touch the persistence medium that holds the session's tokens and
// cached profile.
//
// Three implementations share one contract: [Memory] for tests and
// ephemeral sessions, [File] for a single-device installation that must
// survive a restart, and [Redis] for multi-process deployments.
//
// # Architecture boundaries
//
// This package owns raw persistence only. It does not refresh tokens,
// classify roles, or enforce authentication policy; those belong to the
// bmauth root package.
//
// # What this package must NOT do
//
//   - Import bmauth (no upward imports).
//   - Interpret token contents.
//   - Surface a corrupt profile blob as an error; a damaged cache reads
//     as absent.
package store

import (
	"context"

	"github.com/bridgemark/bmauth/identity"
)

// Storage keys. Every entry a token store writes lives under one of
// these names; ClearAll removes them together so a device never holds a
// half-authenticated state.
const (
	// KeyAccess holds the bearer access token.
	KeyAccess = "bm_access"
	// KeyRefresh holds the refresh token.
	KeyRefresh = "bm_refresh"
	// KeyUser holds the serialized profile of the signed-in principal.
	KeyUser = "bm_user"
	// KeyPartner holds the serialized profile of the active partner.
	KeyPartner = "bm_partner"
	// KeyPartnerID holds the active partner's numeric id.
	KeyPartnerID = "bm_partnerId"
	// KeyReferral holds a pending recommendation/referral key recorded
	// before login and consumed by the first successful consumer login.
	KeyReferral = "bm_referral"
	// KeyNext holds a pending deep-link path recorded before login and
	// consumed by the first successful login.
	KeyNext = "bm_next"
)

// Keys lists every storage key, in the order they are cleared.
var Keys = []string{KeyAccess, KeyRefresh, KeyUser, KeyPartner, KeyPartnerID, KeyReferral, KeyNext}

// TokenStore is the persistence contract for session state. Getters
// return the zero value with a nil error when the entry is absent;
// User additionally returns nil for a corrupt blob.
//
// Implementations must be safe for concurrent use.
type TokenStore interface {
	Access(ctx context.Context) (string, error)
	SetAccess(ctx context.Context, token string) error
	ClearAccess(ctx context.Context) error

	Refresh(ctx context.Context) (string, error)
	SetRefresh(ctx context.Context, token string) error
	ClearRefresh(ctx context.Context) error

	User(ctx context.Context) (*identity.Identity, error)
	SetUser(ctx context.Context, id *identity.Identity) error
	ClearUser(ctx context.Context) error

	// Value, SetValue, and DeleteValue access the role-scoped and
	// deep-link entries (KeyPartner, KeyPartnerID, KeyReferral, KeyNext).
	Value(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error

	// ClearAll removes every entry. Idempotent.
	ClearAll(ctx context.Context) error
}

func encodeUser(id *identity.Identity) (string, error) {
	if id == nil {
		return "", nil
	}
	return id.Encode()
}
