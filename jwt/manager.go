package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Parse for any token that must be treated as
// "no session": bad signature, unknown key, expired or malformed.
var ErrInvalidToken = errors.New("jwt: invalid session token")

const minSecretBytes = 16

// Config configures a Manager.
type Config struct {
	Secret []byte
	KeyID  string
	// Previous maps retired key IDs to their secrets; tokens signed with them
	// still verify until the secret is removed.
	Previous map[string][]byte
	Issuer   string
	TTL      time.Duration
	Leeway   time.Duration
}

// SessionClaims is the payload of a session cookie.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager is safe for concurrent use.
type Manager struct {
	cfg  Config
	keys map[string][]byte
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt: ttl must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway must be within [0, 2m]")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.KeyID == "" {
		cfg.KeyID = "current"
	}

	keys := map[string][]byte{cfg.KeyID: cfg.Secret}
	for kid, secret := range cfg.Previous {
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errors.New("jwt: previous secret with empty key id")
		}
		if kid == cfg.KeyID {
			return nil, fmt.Errorf("jwt: previous key id %q collides with current", kid)
		}
		if len(secret) < minSecretBytes {
			return nil, fmt.Errorf("jwt: previous secret %q is too short", kid)
		}
		keys[kid] = secret
	}

	return &Manager{cfg: cfg, keys: keys}, nil
}

// Sign returns a token for sessionID and its expiry.
func (m *Manager) Sign(sessionID string, now time.Time) (string, time.Time, error) {
	if sessionID == "" {
		return "", time.Time{}, errors.New("jwt: empty session id")
	}
	exp := now.Add(m.cfg.TTL)
	claims := SessionClaims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.cfg.KeyID
	signed, err := token.SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns its claims. Every verification failure is
// reported as ErrInvalidToken wrapping the underlying cause.
func (m *Manager) Parse(raw string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}

	claims := &SessionClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.SID == "" {
		return nil, fmt.Errorf("%w: missing sid", ErrInvalidToken)
	}
	return claims, nil
}
