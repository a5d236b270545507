package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrInvalid reports any token defect: bad signature, malformed claims,
// missing subject, or an elapsed expiry. Callers cannot distinguish the
// causes, which keeps token probing uninformative.
var ErrInvalid = errors.New("token: invalid")

// Manager issues and verifies HS256 bearer tokens.
//
// Sessions are stateless: all session state lives in the signed token, so no
// server-side registry exists and a token cannot be revoked before expiry.
// The secret is fixed at construction; rotating it invalidates every token
// issued under the old secret.
type Manager struct {
	secret []byte
	issuer string
}

// NewManager constructs a Manager with the signing secret and issuer name.
func NewManager(secret, issuer string) Manager {
	return Manager{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token asserting subject, valid for ttl from now.
func (m Manager) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtlib.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// Parse verifies signature and expiry and returns the embedded subject.
// Every failure mode collapses into ErrInvalid.
func (m Manager) Parse(raw string) (string, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, &jwtlib.RegisteredClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return "", ErrInvalid
	}
	claims, ok := parsed.Claims.(*jwtlib.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalid
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrInvalid
	}
	return subject, nil
}
