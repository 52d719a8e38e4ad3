package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aura-webinar/livestream/internal/errs"
)

const issuer = "stream"

// UserClaims is the payload of a user token.
type UserClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Token is a signed user credential.
type Token struct {
	Value     string    `json:"token"`
	UserID    string    `json:"userId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issuer mints user tokens scoped to the provider's API key.
type Issuer struct {
	apiKey     string
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates a token issuer. Missing credentials are reported on use, not here.
func NewIssuer(apiKey, secret string, defaultTTL time.Duration) *Issuer {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Issuer{apiKey: apiKey, secret: []byte(secret), defaultTTL: defaultTTL, now: time.Now}
}

// WithClock returns a copy of the issuer reading time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// APIKey returns the public API key tokens are scoped to.
func (i *Issuer) APIKey() string { return i.apiKey }

// Configured returns a ConfigurationError when the key or secret is missing.
func (i *Issuer) Configured() error {
	if len(i.secret) == 0 {
		return errs.Configuration("STREAM_API_SECRET")
	}
	if i.apiKey == "" {
		return errs.Configuration("STREAM_API_KEY")
	}
	return nil
}

// IssueToken signs a token for userID valid for expiry (the default TTL when zero). A token
// is useless without the API key it is scoped to, so both credentials are required.
func (i *Issuer) IssueToken(userID string, expiry time.Duration) (Token, error) {
	if err := i.Configured(); err != nil {
		return Token{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return Token{}, &errs.ValidationError{Fields: []string{"userId"}}
	}
	if expiry <= 0 {
		expiry = i.defaultTTL
	}
	iat := i.now().Truncate(time.Second)
	exp := iat.Add(expiry)
	claims := UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user/" + userID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, UserID: userID, IssuedAt: iat, ExpiresAt: exp}, nil
}

// Verify parses a user token signed by this issuer.
func (i *Issuer) Verify(tokenString string) (*UserClaims, error) {
	if len(i.secret) == 0 {
		return nil, errs.Configuration("STREAM_API_SECRET")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
		jwt.WithLeeway(time.Second),
	)
	var claims UserClaims
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return &claims, nil
}
