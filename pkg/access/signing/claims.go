package signing

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TimeWindowClaim is one half-open [start, end) interval in a Route Pass
// schedule claim. Times are "HH:MM:SS" in facility-local time.
type TimeWindowClaim struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ScheduleClaim is the optional schedule object carried in a Route Pass.
type ScheduleClaim struct {
	FacilityID  string            `json:"facility_id"`
	TimeWindows []TimeWindowClaim `json:"time_windows"`
}

// RoutePassClaims is the exact payload of a Route Pass token.
//
// The struct is spelled out field by field (rather than embedding
// jwt.RegisteredClaims) because the wire format is normative: aud must be
// present as an array even when empty, and locks parse these payloads with
// fixed key names.
type RoutePassClaims struct {
	Subject      string         `json:"sub"`
	DevicePubKey string         `json:"device_pubkey"`
	Audience     []string       `json:"aud"`
	Schedule     *ScheduleClaim `json:"schedule,omitempty"`
	IssuedAt     int64          `json:"iat"`
	ExpiresAt    int64          `json:"exp"`
	ID           string         `json:"jti"`
	Issuer       string         `json:"iss"`
}

// GetExpirationTime implements jwt.Claims.
func (c *RoutePassClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return numericDate(c.ExpiresAt), nil
}

// GetIssuedAt implements jwt.Claims.
func (c *RoutePassClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return numericDate(c.IssuedAt), nil
}

// GetNotBefore implements jwt.Claims.
func (c *RoutePassClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims.
func (c *RoutePassClaims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

// GetSubject implements jwt.Claims.
func (c *RoutePassClaims) GetSubject() (string, error) {
	return c.Subject, nil
}

// GetAudience implements jwt.Claims.
func (c *RoutePassClaims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings(c.Audience), nil
}

func numericDate(unix int64) *jwt.NumericDate {
	if unix == 0 {
		return nil
	}
	return jwt.NewNumericDate(time.Unix(unix, 0))
}

// VerifyRoutePass checks an operator-signed Route Pass and returns its
// typed claims.
func (s *Service) VerifyRoutePass(token string) (*RoutePassClaims, error) {
	claims := &RoutePassClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !parsed.Valid {
		return nil, ErrBadSignature
	}
	return claims, nil
}
