package bmauth

import (
	"errors"
	"fmt"
)

var (
	// ErrAdminNotAllowed is returned by Login when the authenticated
	// identity holds the administrator role. Admin accounts are never
	// admitted through the consumer or partner surfaces, regardless of
	// the requested role target.
	ErrAdminNotAllowed = errors.New("admin accounts cannot sign in here")
	// ErrPartnerAccessDenied is returned by Login when the partner
	// surface is asked to admit an identity that is not a pure partner.
	ErrPartnerAccessDenied = errors.New("partner access denied")
	// ErrUserAccessDenied is returned by Login when the consumer surface
	// is asked to admit a pure-partner identity.
	ErrUserAccessDenied = errors.New("user access denied")
	// ErrSessionExpired is returned when a token refresh fails or when a
	// request waiting on a refresh finds no token afterwards. The local
	// session has already been cleared when this error is observed.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoRefreshToken is returned when a refresh is needed but the
	// token store holds no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrBuilderUsed is returned by Build on a builder that already
	// produced a client.
	ErrBuilderUsed = errors.New("builder already used")
)

// CredentialError is the remote API declining a credential
// (isSuccess=false). It belongs on the login form, inline, unlike the
// role-gating sentinels above which are transient rejections.
type CredentialError struct {
	// Reason is the remote failureReason, or "" when the API gave none.
	Reason string
}

func (e *CredentialError) Error() string {
	if e.Reason == "" {
		return "invalid credentials"
	}
	return e.Reason
}

// IsCredentialError reports whether err (or anything it wraps) is a
// remote credential rejection.
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

// APIError is a non-2xx answer from the marketplace API outside of the
// shapes handled above.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: unexpected status %d", e.StatusCode)
}
