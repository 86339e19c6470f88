package routepass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	accessmetrics "github.com/blulok/blulok-cloud/pkg/access/metrics"
	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

// FallbackIssuer is the iss claim required on device-signed fallback tokens.
const FallbackIssuer = "blulok-app"

// FallbackAudience is the aud claim required on fallback tokens.
const FallbackAudience = "blulok-cloud-fallback"

// DefaultFallbackSkew bounds how far a fallback token's iat may drift from
// server time in either direction.
const DefaultFallbackSkew = 10 * time.Second

// Common errors for fallback exchange.
var (
	// ErrMalformedFallback means the token could not be parsed or lacks
	// the sub/dev claims.
	ErrMalformedFallback = errors.New("fallback token is malformed")

	// ErrUnknownFallbackDevice means no issuable device with a stored key
	// matches the token's sub/dev pair.
	ErrUnknownFallbackDevice = errors.New("fallback device is not registered")

	// ErrStaleFallback means the token's iat falls outside the permitted
	// skew window.
	ErrStaleFallback = errors.New("fallback token is outside the freshness window")
)

// FallbackVerifier converts device-signed emergency tokens into Route
// Passes. The emitted pass carries an empty audience set; lock scope is
// determined later by the gateway-internal flow.
type FallbackVerifier struct {
	signer  *signing.Service
	devices DeviceReader
	issuer  *Orchestrator
	skew    time.Duration
	clock   clockwork.Clock
	metrics accessmetrics.Metrics
}

// NewFallbackVerifier creates a fallback verifier. A zero skew selects
// DefaultFallbackSkew.
func NewFallbackVerifier(
	signer *signing.Service,
	devices DeviceReader,
	issuer *Orchestrator,
	skew time.Duration,
	clock clockwork.Clock,
	m accessmetrics.Metrics,
) *FallbackVerifier {
	if skew == 0 {
		skew = DefaultFallbackSkew
	}
	if m == nil {
		m = accessmetrics.NewNop()
	}
	return &FallbackVerifier{
		signer:  signer,
		devices: devices,
		issuer:  issuer,
		skew:    skew,
		clock:   clock,
		metrics: m,
	}
}

// Exchange validates a device-signed fallback token and issues a Route Pass.
//
// The token is first parsed unverified to read the sub (user) and dev (app
// device) claims, the device's stored public key is looked up, and only then
// is the signature verified with that key. Freshness requires
// now-skew <= iat <= now+skew.
func (v *FallbackVerifier) Exchange(ctx context.Context, token string) (string, *signing.RoutePassClaims, error) {
	pass, claims, err := v.exchange(ctx, token)
	switch {
	case err == nil:
		v.metrics.FallbackExchange("ok")
	case errors.Is(err, ErrMalformedFallback),
		errors.Is(err, ErrUnknownFallbackDevice),
		errors.Is(err, ErrStaleFallback),
		errors.Is(err, signing.ErrBadSignature),
		errors.Is(err, signing.ErrBadIssuer),
		errors.Is(err, signing.ErrBadAudience):
		v.metrics.FallbackExchange("rejected")
	default:
		v.metrics.FallbackExchange("error")
	}
	return pass, claims, err
}

func (v *FallbackVerifier) exchange(ctx context.Context, token string) (string, *signing.RoutePassClaims, error) {
	userID, appDeviceID, err := peekFallbackSubject(token)
	if err != nil {
		return "", nil, err
	}

	device, err := v.devices.GetIssuableDevice(ctx, userID, appDeviceID)
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			return "", nil, ErrUnknownFallbackDevice
		}
		return "", nil, fmt.Errorf("looking up fallback device: %w", err)
	}
	key, err := device.DecodePublicKey()
	if err != nil {
		return "", nil, ErrUnknownFallbackDevice
	}

	claims, err := v.signer.VerifyWithKey(token, key, FallbackIssuer, FallbackAudience)
	if err != nil {
		if errors.Is(err, signing.ErrMalformed) {
			return "", nil, ErrMalformedFallback
		}
		return "", nil, err
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return "", nil, ErrMalformedFallback
	}
	now := v.clock.Now()
	if iat.Time.Before(now.Add(-v.skew)) || iat.Time.After(now.Add(v.skew)) {
		return "", nil, ErrStaleFallback
	}

	return v.issuer.IssueBootstrap(ctx, userID, device)
}

// peekFallbackSubject reads sub and dev from an unverified token. The
// signature is checked later, once the device key is known.
func peekFallbackSubject(token string) (userID, appDeviceID string, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", "", ErrMalformedFallback
	}

	userID, _ = claims["sub"].(string)
	appDeviceID, _ = claims["dev"].(string)
	if userID == "" || appDeviceID == "" {
		return "", "", ErrMalformedFallback
	}
	return userID, appDeviceID, nil
}
