package bmauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bridgemark/bmauth/store"
	"github.com/rs/zerolog"
)

// refresher coalesces concurrent token refreshes into a single remote
// call per episode. Callers that find an episode already in flight park
// on a channel and are released with the episode's outcome; the
// initiating caller performs the remote exchange.
//
// Invariant: at most one RefreshToken call is sent to the API per
// episode, however many requests observed the same 401.
type refresher struct {
	store   store.TokenStore
	api     *apiClient
	session *Session
	log     zerolog.Logger
	metrics *Metrics
	audit   func(AuditEvent)

	mu       sync.Mutex
	inflight bool
	// waiters are released in queue order once the episode settles,
	// with the new access token or "" on failure.
	waiters []chan string
}

// Refresh returns a usable access token. If an episode is in flight the
// call parks until it settles; otherwise this call becomes the episode.
//
// On failure the session and token store have already been cleared by
// the time the error is returned: a rejected refresh token is fatal to
// the session.
func (r *refresher) Refresh(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.inflight {
		ch := make(chan string, 1)
		r.waiters = append(r.waiters, ch)
		r.mu.Unlock()
		r.metrics.Inc(MetricRefreshCoalesced)
		select {
		case tok := <-ch:
			if tok == "" {
				return "", ErrSessionExpired
			}
			return tok, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r.inflight = true
	r.mu.Unlock()

	var settled string
	defer func() {
		// Settle runs on every exit path, panic included: the inflight
		// flag must never stay set and waiters must never park forever.
		r.mu.Lock()
		r.inflight = false
		waiters := r.waiters
		r.waiters = nil
		r.mu.Unlock()
		for _, ch := range waiters {
			ch <- settled
		}
	}()

	start := time.Now()
	token, err := r.exchange(ctx)
	if err != nil {
		r.metrics.Inc(MetricRefreshFailure)
		r.audit(AuditEvent{EventType: EventRefreshFailure, Error: err.Error()})
		r.log.Warn().Err(err).Msg("token refresh failed; session cleared")
		return "", err
	}

	settled = token
	r.metrics.Inc(MetricRefreshSuccess)
	r.audit(AuditEvent{EventType: EventRefreshSuccess})
	r.log.Debug().Dur("took", time.Since(start)).Msg("token refresh ok")
	return token, nil
}

func (r *refresher) exchange(ctx context.Context) (string, error) {
	refreshTok, err := r.store.Refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh: read token store: %w", err)
	}
	if refreshTok == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := r.api.RefreshToken(ctx, refreshTok)
	if err != nil {
		// A declined or unreachable refresh endpoint ends the session.
		// Teardown uses a detached context so a caller cancellation
		// cannot leave half-cleared state behind.
		if cerr := r.session.clearLocal(context.WithoutCancel(ctx)); cerr != nil {
			r.log.Error().Err(cerr).Msg("session teardown after failed refresh")
		}
		return "", fmt.Errorf("refresh: %w", err)
	}

	if err := r.session.SetTokens(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}
