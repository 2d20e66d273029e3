package bmauth

import (
	"context"
	"net/http"
	"time"

	"github.com/bridgemark/bmauth/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles a [Client]. Configure it during initialization and
// call Build exactly once.
type Builder struct {
	config Config

	store       store.TokenStore
	redisClient redis.UniversalClient
	redisPrefix string
	filePath    string

	baseTransport http.RoundTripper
	auditSink     AuditSink
	logger        *zerolog.Logger

	built bool
}

// New returns a Builder primed with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// DefaultConfig returns the configuration New starts from: the
// marketplace API paths, default landing routes, and a disabled audit
// dispatcher.
func DefaultConfig() Config {
	return defaultConfig()
}

// WithConfig replaces the whole configuration. Start from
// [DefaultConfig] when only a few fields need to change.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the marketplace API root.
func (b *Builder) WithBaseURL(url string) *Builder {
	b.config.API.BaseURL = url
	return b
}

// WithStore supplies an explicit token store. Takes precedence over
// WithRedis and WithFileStore.
func (b *Builder) WithStore(s store.TokenStore) *Builder {
	b.store = s
	return b
}

// WithRedis backs the token store with Redis under the given key
// prefix ("bm" when empty).
func (b *Builder) WithRedis(client redis.UniversalClient, prefix string) *Builder {
	b.redisClient = client
	b.redisPrefix = prefix
	return b
}

// WithFileStore backs the token store with a JSON file at path, the
// single-device medium that survives restarts.
func (b *Builder) WithFileStore(path string) *Builder {
	b.filePath = path
	return b
}

// WithHTTPTransport replaces the underlying round tripper used both for
// the SDK's own API calls and beneath the authenticating transport.
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

// WithAuditSink installs an audit sink and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithLogger sets the client's logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = &log
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithEagerRefresh toggles the pre-send expiry check on the
// authenticating transport.
func (b *Builder) WithEagerRefresh(enabled bool) *Builder {
	b.config.Transport.EagerRefresh = enabled
	return b
}

// Build validates the configuration, assembles the client, and hydrates
// the session from the token store.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if b.logger != nil {
		log = *b.logger
	}

	st := b.store
	var err error
	switch {
	case st != nil:
	case b.redisClient != nil:
		st, err = store.NewRedis(b.redisClient, b.redisPrefix)
		if err != nil {
			return nil, err
		}
	case b.filePath != "":
		st, err = store.NewFile(b.filePath)
		if err != nil {
			return nil, err
		}
	default:
		st = store.NewMemory()
	}

	base := b.baseTransport
	if base == nil {
		base = http.DefaultTransport
	}

	api := newAPIClient(cfg.API, base, log)
	metrics := newMetrics(cfg.Metrics.Enabled)
	audit := newAuditDispatcher(cfg.Audit, b.auditSink)
	session := newSession(context.Background(), st, api, log)

	ref := &refresher{
		store:   st,
		api:     api,
		session: session,
		log:     log,
		metrics: metrics,
		audit: func(event AuditEvent) {
			event.Timestamp = time.Now()
			audit.Emit(event)
		},
	}

	transport := &authTransport{
		base:      base,
		store:     st,
		refresher: ref,
		cfg:       cfg.Transport,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}

	return &Client{
		config:     cfg,
		log:        log,
		store:      st,
		api:        api,
		session:    session,
		audit:      audit,
		metrics:    metrics,
		httpClient: &http.Client{Transport: transport},
	}, nil
}
