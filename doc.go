// Package bmauth is the client-side authentication SDK for the
// Bridgemark marketplace API. It owns the session lifecycle: credential
// login with role gating, bearer-token injection on outbound requests,
// single-flight token refresh on 401, and persistence of tokens and the
// cached profile through a pluggable token store.
//
// A [Client] is built once through [Builder.Build] and is safe for
// concurrent use. [Client.HTTPClient] returns an *http.Client whose
// transport attaches the current access token to every request and
// transparently refreshes it when the API answers 401. At most one
// refresh call is in flight at a time, and each request is retried at
// most once.
//
// # Architecture boundaries
//
// bmauth is the public surface. Role parsing lives in the role
// subpackage, the principal model in identity, and persistence in
// store. None of those import bmauth (no upward imports).
//
// # What this package must NOT do
//
//   - Touch the persistence medium directly; all session state goes
//     through [store.TokenStore].
//   - Verify token signatures. Access tokens are opaque to the client;
//     the only inspection is an unverified expiry peek.
//   - Retry a request more than once per 401.
package bmauth
