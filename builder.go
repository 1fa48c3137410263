package authcore

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sessionlab/authcore/notify"
	"github.com/sessionlab/authcore/password"
	"github.com/sessionlab/authcore/session"
	"github.com/sessionlab/authcore/token"
)

// Builder assembles a [Manager]. Redis client and credential store are
// required; everything else has a working default (argon2id hasher, nop
// logger, Redis pub/sub event sink, no metrics).
type Builder struct {
	config Config
	redis  redis.UniversalClient
	creds  CredentialStore
	hasher PasswordHasher
	sink   notify.Sink
	logger *zap.Logger
	reg    prometheus.Registerer

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration wholesale. Zero fields are filled
// with defaults at Build time; note that Events.Enabled must be set
// explicitly when supplying a custom Config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithSecret sets the token signing secret (at least 32 bytes).
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = secret
	return b
}

// WithRedis sets the session cache client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the durable account record adapter.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.creds = store
	return b
}

// WithPasswordHasher overrides the default argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithEventSink overrides the default Redis pub/sub sink.
func (b *Builder) WithEventSink(sink notify.Sink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a nop logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics registers the Manager's counters with reg.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.reg = reg
	return b
}

// Build validates the configuration, wires the components, and returns a
// ready [Manager]. A Builder builds once.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.creds == nil {
		return nil, errors.New("credential store is required")
	}

	cfg := fillConfigDefaults(b.config)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.Token.Secret,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		Leeway:     cfg.Token.Leeway,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		ResetTTL:   cfg.Token.ResetTTL,
		VerifyTTL:  cfg.Token.VerifyTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("password hasher: %w", err)
		}
	}

	var notifier *notify.Notifier
	if cfg.Events.Enabled {
		sink := b.sink
		if sink == nil {
			sink = notify.NewRedisSink(b.redis, cfg.Events.TopicPrefix, logger)
		}
		notifier = notify.NewNotifier(notify.Config{
			BufferSize: cfg.Events.BufferSize,
			DropIfFull: cfg.Events.DropIfFull,
		}, sink, logger)
	}

	b.built = true

	return &Manager{
		config:   cfg,
		codec:    codec,
		sessions: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		singles:  session.NewSingleUseStore(b.redis, cfg.Session.RedisPrefix),
		creds:    b.creds,
		hasher:   hasher,
		notifier: notifier,
		metrics:  newMetrics(b.reg),
		logger:   logger,
	}, nil
}
