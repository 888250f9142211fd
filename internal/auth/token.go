package auth

import (
	"errors"
	"fmt"
	"time"

	"expense-ledger/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is the fixed validity of an issued session token.
const TokenTTL = time.Hour

// DefaultAlgorithm is the signing algorithm used when none is configured.
const DefaultAlgorithm = "HS256"

var (
	// ErrTokenExpired is returned for a well-signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens, bad signatures,
	// unexpected algorithms and missing claims.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrNotConfigured is returned when no usable secret or algorithm
	// was provided at startup.
	ErrNotConfigured = errors.New("token signing is not configured")
)

// Config holds the runtime-injected credential settings.
type Config struct {
	Secret    string
	Algorithm string
	Cost      int
}

// Credentials hashes passwords and issues and verifies session tokens. It
// holds no mutable state and is safe for concurrent use.
type Credentials struct {
	secret []byte
	method jwt.SigningMethod
	cost   int
	now    func() time.Time
}

// Option configures Credentials.
type Option func(*Credentials)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Credentials) { c.now = now }
}

// New creates Credentials from cfg. A missing secret or an unknown
// algorithm does not fail construction; token operations report
// ErrNotConfigured instead.
func New(cfg Config, opts ...Option) *Credentials {
	alg := cfg.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	c := &Credentials{
		secret: []byte(cfg.Secret),
		cost:   ClampCost(cfg.Cost),
		now:    time.Now,
	}
	if m, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC); ok {
		c.method = m
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether tokens can be issued.
func (c *Credentials) Configured() bool {
	return len(c.secret) > 0 && c.method != nil
}

// Cost returns the effective bcrypt cost.
func (c *Credentials) Cost() int {
	return c.cost
}

// HashPassword hashes password with the configured cost.
func (c *Credentials) HashPassword(password string) (string, error) {
	return HashPassword(password, c.cost)
}

// CheckPassword reports whether password matches hash.
func (c *Credentials) CheckPassword(password, hash string) bool {
	return CheckPassword(password, hash)
}

type tokenClaims struct {
	UserID   string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken signs claims into a token valid for TokenTTL.
func (c *Credentials) IssueToken(claims models.Claims) (string, time.Time, error) {
	if !c.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}

	now := c.now()
	expiresAt := now.Add(TokenTTL)
	token := jwt.NewWithClaims(c.method, tokenClaims{
		UserID:   claims.ID.String(),
		Name:     claims.Name,
		Username: claims.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken validates a token and returns its claims. Expired tokens
// yield ErrTokenExpired; every other failure yields ErrTokenInvalid.
func (c *Credentials) VerifyToken(raw string) (models.Claims, error) {
	if !c.Configured() {
		return models.Claims{}, ErrNotConfigured
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(raw, &parsed,
		func(token *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Claims{}, ErrTokenExpired
		}
		return models.Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	id, err := uuid.Parse(parsed.UserID)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: bad id claim", ErrTokenInvalid)
	}
	return models.Claims{ID: id, Name: parsed.Name, Username: parsed.Username}, nil
}
