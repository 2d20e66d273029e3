package bmauth

import (
	"context"
	"net/http"
	"time"

	"github.com/bridgemark/bmauth/store"
	"github.com/rs/zerolog"
)

// Client is the SDK entry point, produced by [Builder.Build]. All
// methods are safe for concurrent use.
type Client struct {
	config  Config
	log     zerolog.Logger
	store   store.TokenStore
	api     *apiClient
	session *Session
	audit   *auditDispatcher
	metrics *Metrics

	httpClient *http.Client
}

// Session exposes the session state machine.
func (c *Client) Session() *Session { return c.session }

// Store exposes the token store the client was built with.
func (c *Client) Store() store.TokenStore { return c.store }

// HTTPClient returns an *http.Client whose transport attaches the
// current access token to every request and transparently refreshes it
// on 401. Use it for all marketplace API calls the embedding
// application makes.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Metrics returns a point-in-time copy of the client's counters.
func (c *Client) Metrics() MetricsSnapshot { return c.metrics.Snapshot() }

// AuditDropped reports audit events discarded on a full buffer.
func (c *Client) AuditDropped() uint64 { return c.audit.Dropped() }

// Logout ends the session: best-effort remote invalidation, then local
// teardown of the session and the whole token store. Idempotent.
func (c *Client) Logout(ctx context.Context) error {
	err := c.session.Logout(ctx)
	c.metrics.Inc(MetricLogout)
	c.audit.Emit(AuditEvent{
		Timestamp: time.Now(),
		EventType: EventLogout,
		Success:   err == nil,
	})
	return err
}

// Close releases the client's background resources (the audit
// dispatcher). The client must not be used afterwards.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.audit.Close()
}
