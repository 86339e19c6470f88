// Package signing holds the operator Ed25519 keypair and produces the
// compact signed tokens the rest of the core hands out: Route Passes,
// denylist command envelopes, and secure-time packets. All tokens carry the
// protected header {alg:"EdDSA", typ:"JWT"}.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultIssuer is the iss claim stamped on every operator-signed token.
const DefaultIssuer = "blulok-cloud"

// Common errors for signing operations.
var (
	ErrBadSignature  = errors.New("token signature is invalid")
	ErrExpired       = errors.New("token has expired")
	ErrBadAudience   = errors.New("token audience mismatch")
	ErrBadIssuer     = errors.New("token issuer mismatch")
	ErrMalformed     = errors.New("token is malformed")
	ErrSigningFailed = errors.New("failed to sign token")
	ErrBadKeyLength  = errors.New("Ed25519 key must be 32 bytes (43 base64url characters)")
)

// Config holds the operator key material.
type Config struct {
	// PrivateKeyB64 is the base64url (unpadded) 32-byte Ed25519 seed.
	PrivateKeyB64 string

	// PublicKeyB64 is the base64url (unpadded) 32-byte Ed25519 public key.
	// It must match the private key.
	PublicKeyB64 string

	// Issuer is the iss claim. Default: "blulok-cloud".
	Issuer string
}

// Service signs and verifies compact tokens with the operator keypair.
// The key material is read-only after construction; signing is CPU-bound
// and safe for concurrent use.
type Service struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
}

// GenerateKeyPair creates a fresh operator keypair and returns the seed and
// public key in the base64url wire encoding.
func GenerateKeyPair() (privB64, pubB64 string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating keypair: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(priv.Seed()),
		base64.RawURLEncoding.EncodeToString(pub), nil
}

// DecodeKey decodes a base64url Ed25519 key and fails fast on anything that
// is not exactly 32 bytes.
func DecodeKey(b64 string) ([]byte, error) {
	if len(b64) != 43 {
		return nil, fmt.Errorf("%w: got %d characters", ErrBadKeyLength, len(b64))
	}
	raw, err := base64.RawURLEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("key is not base64url: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: decoded to %d bytes", ErrBadKeyLength, len(raw))
	}
	return raw, nil
}

// NewService validates the configured keypair and returns a ready signer.
func NewService(config Config) (*Service, error) {
	seed, err := DecodeKey(config.PrivateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("operator private key: %w", err)
	}
	pub, err := DecodeKey(config.PublicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("operator public key: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	derived := priv.Public().(ed25519.PublicKey)
	if !derived.Equal(ed25519.PublicKey(pub)) {
		return nil, fmt.Errorf("operator public key does not match private key")
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	return &Service{
		priv:   priv,
		pub:    derived,
		issuer: issuer,
	}, nil
}

// Issuer returns the configured issuer claim.
func (s *Service) Issuer() string {
	return s.issuer
}

// PublicKey returns the operator public key used for verification.
func (s *Service) PublicKey() ed25519.PublicKey {
	return s.pub
}

// PublicKeyB64 returns the operator public key in the base64url form
// configuration uses.
func (s *Service) PublicKeyB64() string {
	return base64.RawURLEncoding.EncodeToString(s.pub)
}

// NewJTI returns a fresh random 128-bit token ID.
func (s *Service) NewJTI() string {
	return uuid.New().String()
}

// SignClaims signs fully assembled claims with the operator key.
// The caller is responsible for populating iat, exp, jti, and iss.
func (s *Service) SignClaims(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return signed, nil
}

// SignCommand signs a command payload, injecting the standard iat, exp, jti,
// and iss claims around the caller's fields.
func (s *Service) SignCommand(fields map[string]any, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": s.NewJTI(),
		"iss": s.issuer,
	}
	for k, v := range fields {
		claims[k] = v
	}
	return s.SignClaims(claims)
}

// Verify checks an operator-signed token: EdDSA signature, expiry, issuer,
// and, when expectedAudience is non-empty, audience membership. Returns the
// decoded claims.
func (s *Service) Verify(token, expectedAudience string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	}
	if expectedAudience != "" {
		opts = append(opts, jwt.WithAudience(expectedAudience))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	}, opts...)
	if err != nil {
		return nil, mapJWTError(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrBadSignature
	}
	return claims, nil
}

// VerifyWithKey checks a device-signed token against a caller-provided
// public key: EdDSA signature, issuer, and audience. Registered time claims
// are NOT validated here; device tokens carry freshness semantics (iat
// skew) that the caller enforces.
func (s *Service) VerifyWithKey(token string, key ed25519.PublicKey, issuer, audience string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrBadSignature
	}

	if iss, _ := claims.GetIssuer(); iss != issuer {
		return nil, ErrBadIssuer
	}
	aud, _ := claims.GetAudience()
	found := false
	for _, a := range aud {
		if a == audience {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrBadAudience
	}

	return claims, nil
}

// mapJWTError converts golang-jwt parse errors to the package sentinels.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrBadAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrBadIssuer
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrBadSignature
	}
}
