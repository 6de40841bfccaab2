// Package applejwt signs the ES256 tokens Apple expects for Sign in with Apple
// client secrets and APNs provider authentication.
package applejwt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Audience is the aud claim of a Sign in with Apple client secret
	Audience = "https://appleid.apple.com"
	// MaxClientSecretTTL is the longest lifetime Apple accepts for a client secret
	MaxClientSecretTTL = 15777000 * time.Second
	// ProviderTokenRefresh is how long a provider token is reused.
	// APNs rejects tokens older than one hour.
	ProviderTokenRefresh = 50 * time.Minute
)

var (
	ErrInvalidConfig = errors.New("invalid apple key configuration")
	ErrInvalidTTL    = errors.New("ttl must be positive and at most 15777000s")
)

// Config identifies the signing key
type Config struct {
	TeamID         string
	KeyID          string
	BundleID       string
	PrivateKeyPath string
	// PrivateKeyPEM takes precedence over PrivateKeyPath
	PrivateKeyPEM string
}

// Validate checks the ids Apple issues with a fixed length
func (c Config) Validate() error {
	if len(c.TeamID) != 10 {
		return fmt.Errorf("%w: team id must be 10 characters, got %q", ErrInvalidConfig, c.TeamID)
	}
	if len(c.KeyID) != 10 {
		return fmt.Errorf("%w: key id must be 10 characters, got %q", ErrInvalidConfig, c.KeyID)
	}
	if c.PrivateKeyPEM == "" && c.PrivateKeyPath == "" {
		return fmt.Errorf("%w: private key path or PEM is required", ErrInvalidConfig)
	}
	return nil
}

// Signer issues tokens with one .p8 key
type Signer struct {
	cfg Config
	key *ecdsa.PrivateKey

	mu       sync.Mutex
	cached   string
	issuedAt time.Time
}

// NewSigner loads the PKCS#8 EC private key named by cfg
func NewSigner(cfg Config) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pemBytes := []byte(cfg.PrivateKeyPEM)
	if len(pemBytes) == 0 {
		var err error
		pemBytes, err = os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Signer{cfg: cfg, key: key}, nil
}

// Config returns the configuration the signer was built with
func (s *Signer) Config() Config {
	return s.cfg
}

// PrivateKey returns the loaded signing key
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

// PublicKey returns the public half of the signing key
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// ClientSecret issues a Sign in with Apple client secret valid for ttl from now
func (s *Signer) ClientSecret(now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > MaxClientSecretTTL {
		return "", ErrInvalidTTL
	}
	if s.cfg.BundleID == "" {
		return "", fmt.Errorf("%w: bundle id is required for a client secret", ErrInvalidConfig)
	}

	claims := jwt.MapClaims{
		"iss": s.cfg.TeamID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"aud": Audience,
		"sub": s.cfg.BundleID,
	}
	return s.sign(claims)
}

// ProviderToken returns the APNs provider token, re-signing it once it is
// ProviderTokenRefresh old. Safe for concurrent use.
func (s *Signer) ProviderToken(now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && now.Sub(s.issuedAt) < ProviderTokenRefresh {
		return s.cached, nil
	}

	token, err := s.sign(jwt.MapClaims{
		"iss": s.cfg.TeamID,
		"iat": now.Unix(),
	})
	if err != nil {
		return "", err
	}

	s.cached = token
	s.issuedAt = now
	return token, nil
}

func (s *Signer) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.cfg.KeyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decoded is a token split into header and claims
type Decoded struct {
	Header map[string]interface{} `json:"header"`
	Claims jwt.MapClaims          `json:"payload"`
}

// Decode reads a token without checking its signature
func Decode(tokenString string) (*Decoded, error) {
	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &Decoded{Header: token.Header, Claims: claims}, nil
}

// Verify checks an ES256 signature and the registered time claims
func Verify(tokenString string, pub *ecdsa.PublicKey) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
