// Package gateway abstracts the cloud-to-gateway link. The real transport
// (a WebSocket fan-out per facility) lives outside the access core; the
// core only needs a sink that accepts a signed command for one facility.
package gateway

import (
	"context"
	"time"

	"github.com/blulok/blulok-cloud/internal/logger"
)

// DefaultUnicastTimeout bounds each outbound delivery attempt.
const DefaultUnicastTimeout = 5 * time.Second

// UnicastSink delivers a signed command to one facility's gateway.
// Delivery is best-effort, non-transactional, and unordered across
// facilities; ordering within a facility is the caller's concern.
type UnicastSink interface {
	UnicastToFacility(ctx context.Context, facilityID, signedCommand string) error
}

// LogSink is a UnicastSink that records commands to the log and drops them.
// It stands in for the gateway link in development and one-shot CLI use.
type LogSink struct{}

// NewLogSink creates a logging sink.
func NewLogSink() *LogSink { return &LogSink{} }

// UnicastToFacility implements UnicastSink.
func (*LogSink) UnicastToFacility(_ context.Context, facilityID, signedCommand string) error {
	logger.Debug("dropping gateway command (no gateway link configured)",
		"facility_id", facilityID, "command_bytes", len(signedCommand))
	return nil
}

var _ UnicastSink = (*LogSink)(nil)
