package bmauth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bridgemark/bmauth/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// authTransport is the authenticating round tripper behind
// [Client.HTTPClient]. Per request it reads the access token fresh from
// the token store, attaches the bearer header and a correlation id, and
// on 401 runs one refresh episode and one retry.
//
// Invariants:
//   - a request is retried at most once, tracked by a context marker;
//   - a non-401 response always passes through unchanged;
//   - when the refresh episode yields no token, the caller receives the
//     original 401 response, body intact.
type authTransport struct {
	base      http.RoundTripper
	store     store.TokenStore
	refresher *refresher
	cfg       TransportConfig
	metrics   *Metrics
	log       zerolog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	access, err := t.store.Access(ctx)
	if err != nil {
		return nil, err
	}
	if t.cfg.EagerRefresh && access != "" && !wasRetried(ctx) &&
		tokenExpiresWithin(access, t.now(), t.cfg.ExpiryLeeway) {
		if tok, rerr := t.refresher.Refresh(ctx); rerr == nil && tok != "" {
			access = tok
		}
	}

	out := req.Clone(ctx)
	if access != "" {
		out.Header.Set("Authorization", "Bearer "+access)
	}
	if t.cfg.RequestIDHeader != "" && out.Header.Get(t.cfg.RequestIDHeader) == "" {
		out.Header.Set(t.cfg.RequestIDHeader, requestIDFromContext(ctx))
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || wasRetried(ctx) {
		return resp, nil
	}

	// Buffer the 401 so it can still be surfaced unchanged if the
	// refresh episode does not produce a token.
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, t.cfg.MaxReplayBodyBytes))
	resp.Body.Close()
	if readErr != nil {
		body = nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	newTok, rerr := t.refresher.Refresh(ctx)
	if rerr != nil || newTok == "" {
		t.log.Debug().Err(rerr).Str("url", req.URL.Path).Msg("401 not recoverable")
		return resp, nil
	}

	retry, ok := cloneForRetry(req)
	if !ok {
		// Body is not replayable; the refreshed token will serve the
		// caller's next attempt.
		return resp, nil
	}
	t.metrics.Inc(MetricRequestRetried)
	t.log.Debug().Str("url", req.URL.Path).Msg("retrying after refresh")
	return t.RoundTrip(retry)
}

// cloneForRetry produces a once-marked copy of req with a rewound body.
// Requests whose body cannot be replayed (no GetBody) are not retried.
func cloneForRetry(req *http.Request) (*http.Request, bool) {
	retry := req.Clone(markRetried(req.Context()))
	retry.Header.Del("Authorization")
	if req.Body == nil {
		return retry, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	retry.Body = body
	return retry, true
}

func requestIDFromContext(ctx context.Context) string {
	if id := requestIDValue(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
