// Package routepass issues Route Passes: the cloud-signed tokens that grant
// a user's device permission to operate a set of locks for a bounded time.
// It also exchanges device-signed fallback tokens for Route Passes when the
// network path to the gateway is down.
package routepass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/internal/logger"
	accessmetrics "github.com/blulok/blulok-cloud/pkg/access/metrics"
	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

// DefaultTTL is the Route Pass lifetime when the operator has not
// configured one.
const DefaultTTL = 24 * time.Hour

// Common errors for Route Pass issuance.
var (
	// ErrInvalidDeviceHint means the requested app device ID matches no
	// issuable device for the user.
	ErrInvalidDeviceHint = errors.New("no issuable device matches the requested device id")

	// ErrNoRegisteredDevice means the user has no issuable device at all;
	// they must enroll before requesting a pass.
	ErrNoRegisteredDevice = errors.New("user has no registered device")

	// ErrDeviceKeyMissing means the selected device carries no usable
	// public key.
	ErrDeviceKeyMissing = errors.New("selected device has no public key")

	// ErrSigningUnavailable means the operator signer rejected the request.
	ErrSigningUnavailable = errors.New("signing unavailable")
)

// Identity is the authenticated caller context of an issuance request.
type Identity struct {
	UserID      string
	Role        models.UserRole
	FacilityIDs []string
}

// DeviceReader looks up enrolled devices.
type DeviceReader interface {
	GetIssuableDevice(ctx context.Context, userID, appDeviceID string) (*models.UserDevice, error)
	GetLatestIssuableDevice(ctx context.Context, userID string) (*models.UserDevice, error)
}

// IssuanceWriter appends Route Pass audit rows.
type IssuanceWriter interface {
	RecordIssuance(ctx context.Context, issuance *models.RoutePassIssuance) error
}

// AudienceResolver computes the audience set for a pass.
type AudienceResolver interface {
	Resolve(ctx context.Context, userID string, role models.UserRole, facilityIDs []string) ([]string, error)
}

// ScheduleResolver computes the optional schedule claim for a pass.
type ScheduleResolver interface {
	Resolve(ctx context.Context, userID string, facilityIDs, audiences []string) (*signing.ScheduleClaim, error)
}

// Orchestrator drives end-to-end Route Pass issuance: device lookup,
// audience and schedule resolution, signing, and audit.
type Orchestrator struct {
	signer    *signing.Service
	devices   DeviceReader
	issuances IssuanceWriter
	audiences AudienceResolver
	schedules ScheduleResolver
	ttl       time.Duration
	clock     clockwork.Clock
	metrics   accessmetrics.Metrics
}

// NewOrchestrator creates a Route Pass orchestrator. A zero ttl selects
// DefaultTTL.
func NewOrchestrator(
	signer *signing.Service,
	devices DeviceReader,
	issuances IssuanceWriter,
	audiences AudienceResolver,
	schedules ScheduleResolver,
	ttl time.Duration,
	clock clockwork.Clock,
	m accessmetrics.Metrics,
) *Orchestrator {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if m == nil {
		m = accessmetrics.NewNop()
	}
	return &Orchestrator{
		signer:    signer,
		devices:   devices,
		issuances: issuances,
		audiences: audiences,
		schedules: schedules,
		ttl:       ttl,
		clock:     clock,
		metrics:   m,
	}
}

// TTL returns the configured Route Pass lifetime.
func (o *Orchestrator) TTL() time.Duration {
	return o.ttl
}

// IssueForUser issues a Route Pass for the authenticated identity.
//
// If appDeviceID is non-empty, the matching issuable device is required;
// otherwise the user's most recently updated issuable device is selected.
// The audience set comes from the audience resolver and the schedule claim
// from the schedule resolver. The signed compact token and its claims are
// returned; the audit row is written best-effort and never fails the call.
func (o *Orchestrator) IssueForUser(ctx context.Context, ident Identity, appDeviceID string) (string, *signing.RoutePassClaims, error) {
	device, err := o.selectDevice(ctx, ident.UserID, appDeviceID)
	if err != nil {
		return "", nil, err
	}

	audiences, err := o.audiences.Resolve(ctx, ident.UserID, ident.Role, ident.FacilityIDs)
	if err != nil {
		return "", nil, fmt.Errorf("resolving audiences: %w", err)
	}

	schedClaim, err := o.schedules.Resolve(ctx, ident.UserID, ident.FacilityIDs, audiences)
	if err != nil {
		return "", nil, fmt.Errorf("resolving schedule: %w", err)
	}

	return o.issue(ctx, ident.UserID, device, audiences, schedClaim)
}

// IssueBootstrap issues a Route Pass with a deliberately empty audience set
// for the fallback path. The pass is a bootstrap credential: its value is
// surviving a network partition, not scope expansion.
func (o *Orchestrator) IssueBootstrap(ctx context.Context, userID string, device *models.UserDevice) (string, *signing.RoutePassClaims, error) {
	return o.issue(ctx, userID, device, []string{}, nil)
}

func (o *Orchestrator) selectDevice(ctx context.Context, userID, appDeviceID string) (*models.UserDevice, error) {
	if appDeviceID != "" {
		device, err := o.devices.GetIssuableDevice(ctx, userID, appDeviceID)
		if err != nil {
			if errors.Is(err, models.ErrDeviceNotFound) {
				return nil, ErrInvalidDeviceHint
			}
			return nil, fmt.Errorf("looking up device: %w", err)
		}
		return device, nil
	}

	device, err := o.devices.GetLatestIssuableDevice(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNoRegisteredDevice) {
			return nil, ErrNoRegisteredDevice
		}
		return nil, fmt.Errorf("looking up device: %w", err)
	}
	return device, nil
}

func (o *Orchestrator) issue(ctx context.Context, userID string, device *models.UserDevice, audiences []string, schedClaim *signing.ScheduleClaim) (string, *signing.RoutePassClaims, error) {
	if _, err := device.DecodePublicKey(); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDeviceKeyMissing, err)
	}
	if audiences == nil {
		audiences = []string{}
	}

	now := o.clock.Now()
	claims := &signing.RoutePassClaims{
		Subject:      userID,
		DevicePubKey: device.PublicKey,
		Audience:     audiences,
		Schedule:     schedClaim,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(o.ttl).Unix(),
		ID:           o.signer.NewJTI(),
		Issuer:       o.signer.Issuer(),
	}

	token, err := o.signer.SignClaims(claims)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrSigningUnavailable, err)
	}

	// The audit row is the last side effect: a cancelled request must not
	// leave a row for a token that was never returned.
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	o.recordIssuance(ctx, claims, device.ID)

	o.metrics.RoutePassIssued()
	return token, claims, nil
}

// recordIssuance writes the audit row. Persistence failures are swallowed:
// issuance must not fail because of audit.
func (o *Orchestrator) recordIssuance(ctx context.Context, claims *signing.RoutePassClaims, deviceID string) {
	row := &models.RoutePassIssuance{
		JTI:       claims.ID,
		UserID:    claims.Subject,
		DeviceID:  deviceID,
		IssuedAt:  time.Unix(claims.IssuedAt, 0),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}
	if err := row.SetAudiences(claims.Audience); err != nil {
		logger.Warn("failed to encode issuance audiences", "jti", claims.ID, "error", err)
		return
	}
	if err := o.issuances.RecordIssuance(ctx, row); err != nil {
		logger.Warn("route pass issued but audit write failed",
			"jti", claims.ID, "user_id", claims.Subject, "error", err)
	}
}
