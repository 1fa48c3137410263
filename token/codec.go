package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tags a token with the single flow it is valid for. Each purpose
// has its own claim variant and TTL; verification rejects tokens presented
// to the wrong flow.
type Purpose string

const (
	// PurposeAccess marks short-lived, stateless access tokens.
	PurposeAccess Purpose = "access"
	// PurposeRefresh marks long-lived, session-bound refresh tokens.
	PurposeRefresh Purpose = "refresh"
	// PurposePasswordReset marks single-use password-reset tokens.
	PurposePasswordReset Purpose = "password_reset"
	// PurposeEmailVerify marks single-use email-verification tokens.
	PurposeEmailVerify Purpose = "email_verification"
)

var (
	// ErrExpired is returned when a structurally valid token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned when a token fails signature, structure, or
	// purpose checks. It deliberately carries no further classification.
	ErrMalformed = errors.New("token malformed")
)

const minSecretLen = 32

// Config holds the signing secret and per-purpose TTL table. A Codec built
// from it is immutable; rotating the secret means building a new Codec and
// accepting that all outstanding tokens become invalid.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	VerifyTTL  time.Duration
}

// Codec signs and verifies purpose-tagged tokens. It is stateless: validity
// is a pure function of secret, payload, and clock.
type Codec struct {
	config Config
}

// AccessClaims is the claim set carried by access tokens.
type AccessClaims struct {
	AccountID string  `json:"uid"`
	Role      string  `json:"role,omitempty"`
	Purpose   Purpose `json:"pps"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set carried by refresh tokens. ID (jti) is the
// rotation identifier compared against the session record.
type RefreshClaims struct {
	AccountID string  `json:"uid"`
	SessionID string  `json:"sid"`
	Purpose   Purpose `json:"pps"`
	jwt.RegisteredClaims
}

// SingleUseClaims is the claim set carried by password-reset and
// email-verification tokens. ID (jti) is matched against the cache entry.
type SingleUseClaims struct {
	AccountID string  `json:"uid"`
	Purpose   Purpose `json:"pps"`
	jwt.RegisteredClaims
}

// NewCodec validates the configuration and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretLen)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 || cfg.VerifyTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Codec{config: cfg}, nil
}

// TTL returns the configured lifetime for a purpose.
func (c *Codec) TTL(p Purpose) time.Duration {
	switch p {
	case PurposeAccess:
		return c.config.AccessTTL
	case PurposeRefresh:
		return c.config.RefreshTTL
	case PurposePasswordReset:
		return c.config.ResetTTL
	case PurposeEmailVerify:
		return c.config.VerifyTTL
	default:
		return 0
	}
}

// SignAccess mints an access token carrying the account's role snapshot.
func (c *Codec) SignAccess(accountID, role string) (string, error) {
	claims := AccessClaims{
		AccountID:        accountID,
		Role:             role,
		Purpose:          PurposeAccess,
		RegisteredClaims: c.registered(PurposeAccess),
	}
	return c.sign(claims)
}

// SignRefresh mints a refresh token bound to a session. tokenID becomes the
// jti and must match the identifier stored in the session record.
func (c *Codec) SignRefresh(accountID, sessionID, tokenID string) (string, error) {
	reg := c.registered(PurposeRefresh)
	reg.ID = tokenID
	claims := RefreshClaims{
		AccountID:        accountID,
		SessionID:        sessionID,
		Purpose:          PurposeRefresh,
		RegisteredClaims: reg,
	}
	return c.sign(claims)
}

// SignSingleUse mints a reset or verification token and returns it together
// with its jti, which the caller stores as the cache entry value.
func (c *Codec) SignSingleUse(accountID string, purpose Purpose) (string, string, error) {
	if purpose != PurposePasswordReset && purpose != PurposeEmailVerify {
		return "", "", fmt.Errorf("purpose %q is not single-use", purpose)
	}
	reg := c.registered(purpose)
	reg.ID = uuid.NewString()
	claims := SingleUseClaims{
		AccountID:        accountID,
		Purpose:          purpose,
		RegisteredClaims: reg,
	}
	signed, err := c.sign(claims)
	if err != nil {
		return "", "", err
	}
	return signed, reg.ID, nil
}

// ParseAccess verifies an access token and returns its claims.
func (c *Codec) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAccess || claims.AccountID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (c *Codec) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeRefresh || claims.AccountID == "" ||
		claims.SessionID == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// ParseSingleUse verifies a single-use token against the expected purpose.
func (c *Codec) ParseSingleUse(tokenStr string, purpose Purpose) (*SingleUseClaims, error) {
	claims := &SingleUseClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != purpose || claims.AccountID == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (c *Codec) registered(p Purpose) jwt.RegisteredClaims {
	now := time.Now()
	reg := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(p))),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    c.config.Issuer,
	}
	if c.config.Audience != "" {
		reg.Audience = jwt.ClaimStrings{c.config.Audience}
	}
	return reg
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return c.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !parsed.Valid {
		return ErrMalformed
	}
	return nil
}
