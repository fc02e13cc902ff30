package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authority/cmd/identity/ids"
)

// Claims is the token payload. UserID repeats the subject for clients that read user_id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

// Subject identifies the account a token is issued for.
type Subject struct {
	ID   string
	Name string
}

// Signed is an issued token with the claims it carries.
type Signed struct {
	Raw    string
	Claims Claims
}

// Codec signs and verifies tokens. It is immutable and safe for concurrent use.
type Codec struct {
	cfg Config
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Codec{cfg: cfg}, nil
}

// TTL returns the configured lifetime of class.
func (c *Codec) TTL(class Class) time.Duration { return c.cfg.ttl(class) }

// Issue signs a token of class for sub, valid from now for the class TTL.
func (c *Codec) Issue(class Class, sub Subject, now time.Time) (Signed, error) {
	if !class.valid() {
		return Signed{}, ErrUnknownClass
	}
	if sub.ID == "" {
		return Signed{}, fmt.Errorf("token: empty subject")
	}
	if now.IsZero() {
		now = time.Now()
	}

	jti, err := ids.New(now)
	if err != nil {
		return Signed{}, fmt.Errorf("token: jti: %w", err)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   sub.ID,
			Audience:  jwt.ClaimStrings{c.cfg.audience(class)},
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.ttl(class))),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		UserID: sub.ID,
		Name:   sub.Name,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["typ"] = class.typ()

	raw, err := tok.SignedString(c.cfg.secret(class))
	if err != nil {
		return Signed{}, fmt.Errorf("token: sign: %w", err)
	}
	return Signed{Raw: raw, Claims: claims}, nil
}

// Verify checks raw as a token of class at time now.
func (c *Codec) Verify(class Class, raw string, now time.Time) (Claims, error) {
	if !class.valid() {
		return Claims{}, ErrUnknownClass
	}
	if now.IsZero() {
		now = time.Now()
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.audience(class)),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims Claims
	tok, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if typ, _ := t.Header["typ"].(string); typ != class.typ() {
			return nil, ErrInvalidToken
		}
		return c.cfg.secret(class), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.UserID != claims.Subject {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
