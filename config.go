package authcore

import (
	"errors"
	"time"
)

// Config groups the Manager's tunables. Zero values fall back to the
// defaults below at Build time; the signing secret is the only field with
// no default.
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Events   EventConfig
	Timeouts TimeoutConfig
}

// TokenConfig configures the signing codec. Secret is the single
// process-wide key; replacing it invalidates every outstanding token, which
// is the accepted operational cost of rotation.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration

	AccessTTL  time.Duration // short: minutes
	RefreshTTL time.Duration // long: days
	ResetTTL   time.Duration // hours
	VerifyTTL  time.Duration // hours
}

// SessionConfig configures the cache-side session state.
type SessionConfig struct {
	RedisPrefix string
}

// EventConfig configures the best-effort notifier.
type EventConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	TopicPrefix string
}

// TimeoutConfig bounds blocking calls. Every cache and credential-store
// call inside a Manager operation runs under Operation; a deadline surfaces
// as [ErrServiceUnavailable], never as a silent success.
type TimeoutConfig struct {
	Operation time.Duration
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:     "authcore",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			ResetTTL:   time.Hour,
			VerifyTTL:  24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "ac",
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Timeouts: TimeoutConfig{
			Operation: 5 * time.Second,
		},
	}
}

func fillConfigDefaults(cfg Config) Config {
	def := defaultConfig()
	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = def.Token.Issuer
	}
	if cfg.Token.AccessTTL == 0 {
		cfg.Token.AccessTTL = def.Token.AccessTTL
	}
	if cfg.Token.RefreshTTL == 0 {
		cfg.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if cfg.Token.ResetTTL == 0 {
		cfg.Token.ResetTTL = def.Token.ResetTTL
	}
	if cfg.Token.VerifyTTL == 0 {
		cfg.Token.VerifyTTL = def.Token.VerifyTTL
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = def.Events.BufferSize
	}
	if cfg.Timeouts.Operation == 0 {
		cfg.Timeouts.Operation = def.Timeouts.Operation
	}
	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.Timeouts.Operation < 0 {
		return errors.New("operation timeout must not be negative")
	}
	if cfg.Events.BufferSize < 0 {
		return errors.New("event buffer size must not be negative")
	}
	// TTL and secret constraints are enforced by the codec constructor.
	return nil
}
