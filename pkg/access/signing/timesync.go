package signing

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// CmdTypeSecureTimeSync is the cmd_type claim on secure-time packets.
const CmdTypeSecureTimeSync = "SECURE_TIME_SYNC"

// timeSyncTTL bounds how long a secure-time packet remains presentable.
// Locks additionally reject packets whose ts does not advance their
// last-seen value, so replay of a still-unexpired packet is harmless.
const timeSyncTTL = 5 * time.Minute

// TimeSyncBuilder produces signed secure-time packets for gateway broadcast
// and per-lock startup.
type TimeSyncBuilder struct {
	signer *Service
	clock  clockwork.Clock
}

// NewTimeSyncBuilder creates a time-sync builder on the operator signer.
func NewTimeSyncBuilder(signer *Service, clock clockwork.Clock) *TimeSyncBuilder {
	return &TimeSyncBuilder{
		signer: signer,
		clock:  clock,
	}
}

// BuildBroadcast returns a signed packet carrying the current server time,
// for facility-wide broadcast.
func (b *TimeSyncBuilder) BuildBroadcast() (string, error) {
	now := b.clock.Now()
	return b.signer.SignCommand(map[string]any{
		"cmd_type": CmdTypeSecureTimeSync,
		"ts":       now.Unix(),
	}, timeSyncTTL, now)
}

// BuildForLock returns a signed packet addressed to a single lock, used at
// lock startup.
func (b *TimeSyncBuilder) BuildForLock(lockID string) (string, error) {
	now := b.clock.Now()
	return b.signer.SignCommand(map[string]any{
		"cmd_type": CmdTypeSecureTimeSync,
		"ts":       now.Unix(),
		"lock_id":  lockID,
	}, timeSyncTTL, now)
}
