package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/internal/logger"
	"github.com/blulok/blulok-cloud/pkg/access/denylist"
	"github.com/blulok/blulok-cloud/pkg/access/gateway"
	accessmetrics "github.com/blulok/blulok-cloud/pkg/access/metrics"
	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// ErrStopped is returned by Enqueue after the listener has shut down.
var ErrStopped = errors.New("cascade listener is stopped")

// defaultQueueSize bounds the event channel.
const defaultQueueSize = 256

// Store is the slice of the persistence layer the cascade needs.
type Store interface {
	ListLocksByUnit(ctx context.Context, unitID string) ([]models.Lock, error)
	GetUnit(ctx context.Context, unitID string) (*models.Unit, error)
	GetFacilityIDForLock(ctx context.Context, lockID string) (string, error)
	ListAssignmentsByTenant(ctx context.Context, tenantID string) ([]models.UnitAssignment, error)
	ListSharesForUser(ctx context.Context, userID string) ([]models.KeySharing, error)
	UpsertDenylistEntry(ctx context.Context, entry *models.DenylistEntry) (string, error)
	FindDenylistByUnitsAndUser(ctx context.Context, unitIDs []string, userID string) ([]models.DenylistEntry, error)
	RemoveDenylistEntry(ctx context.Context, deviceID, userID string) error
}

// Listener is the single-writer consumer of cascade events.
//
// Events are consumed sequentially from one queue; the work for each
// facility is then submitted to that facility's single-worker pool, which
// preserves command order on each facility's uplink while facilities
// proceed independently.
//
// Store writes are the source of truth for revocation intent: a failed
// store write suppresses the unicast for the affected devices, while a
// failed unicast is logged and left for the next event to reconcile.
type Listener struct {
	store          Store
	builder        *denylist.CommandBuilder
	optimizer      *denylist.Optimizer
	sink           gateway.UnicastSink
	ttl            time.Duration
	unicastTimeout time.Duration
	clock          clockwork.Clock
	metrics        accessmetrics.Metrics

	events chan Event

	// done signals shutdown to producers and the consumer. The events
	// channel is never closed: a producer blocked in its send must not
	// race a close.
	done chan struct{}

	mu      sync.Mutex
	pools   map[string]pond.Pool
	stopped bool

	consumerDone chan struct{}
}

// Config carries the listener's tunables.
type Config struct {
	// RoutePassTTL sets the expiry horizon of synthesized denylist entries.
	RoutePassTTL time.Duration

	// UnicastTimeout bounds each delivery to the gateway sink.
	// Default: gateway.DefaultUnicastTimeout.
	UnicastTimeout time.Duration

	// QueueSize bounds the event queue. Default: 256.
	QueueSize int
}

// NewListener creates a cascade listener. Call Start to begin consuming.
func NewListener(
	store Store,
	builder *denylist.CommandBuilder,
	optimizer *denylist.Optimizer,
	sink gateway.UnicastSink,
	config Config,
	clock clockwork.Clock,
	m accessmetrics.Metrics,
) *Listener {
	if config.UnicastTimeout == 0 {
		config.UnicastTimeout = gateway.DefaultUnicastTimeout
	}
	if config.QueueSize == 0 {
		config.QueueSize = defaultQueueSize
	}
	if m == nil {
		m = accessmetrics.NewNop()
	}
	return &Listener{
		store:          store,
		builder:        builder,
		optimizer:      optimizer,
		sink:           sink,
		ttl:            config.RoutePassTTL,
		unicastTimeout: config.UnicastTimeout,
		clock:          clock,
		metrics:        m,
		events:         make(chan Event, config.QueueSize),
		done:           make(chan struct{}),
		pools:          make(map[string]pond.Pool),
		consumerDone:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (l *Listener) Start() {
	go l.run()
}

// Enqueue submits an event to the cascade queue. It blocks while the queue
// is full and fails once the listener is stopped or the context is done.
func (l *Listener) Enqueue(ctx context.Context, e Event) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.events <- e:
		l.metrics.CascadeQueueDepth(1)
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains the queue and waits for in-flight facility work to finish,
// or for the context to expire. No events are accepted after Stop.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.done)
	l.mu.Unlock()

	select {
	case <-l.consumerDone:
	case <-ctx.Done():
		return fmt.Errorf("cascade drain interrupted: %w", ctx.Err())
	}

	l.mu.Lock()
	pools := make([]pond.Pool, 0, len(l.pools))
	for _, p := range l.pools {
		pools = append(pools, p)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, p := range pools {
			p.StopAndWait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cascade drain interrupted: %w", ctx.Err())
	}
}

func (l *Listener) run() {
	defer close(l.consumerDone)
	for {
		select {
		case e := <-l.events:
			l.metrics.CascadeQueueDepth(-1)
			l.dispatch(e)
		case <-l.done:
			// Drain whatever was accepted before Stop, then exit.
			for {
				select {
				case e := <-l.events:
					l.metrics.CascadeQueueDepth(-1)
					l.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

// facilityPool returns the single-worker pool serializing one facility's
// uplink.
func (l *Listener) facilityPool(facilityID string) pond.Pool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[facilityID]
	if !ok {
		p = pond.NewPool(1)
		l.pools[facilityID] = p
	}
	return p
}

// dispatch fans an event out to per-facility tasks. Store reads needed to
// locate the affected facilities happen here, on the single consumer
// goroutine; everything touching one facility's uplink runs on that
// facility's pool.
func (l *Listener) dispatch(e Event) {
	ctx := context.Background()

	switch ev := e.(type) {
	case TenantUnassigned:
		source := models.SourceUnitUnassignment
		if ev.ViaFMSSync {
			source = models.SourceFMSSync
		}
		l.submitAdd(ev.FacilityID, ev.UnitID, ev.TenantID, source, ev.ActorID)

	case KeySharingRevoked:
		l.submitAdd(ev.FacilityID, ev.UnitID, ev.SharedWithUserID, models.SourceKeySharingRevocation, ev.PrimaryTenantID)

	case TenantAssigned:
		l.facilityPool(ev.FacilityID).Submit(func() {
			l.handleAssigned(context.Background(), ev)
		})

	case UserDeactivated:
		unitsByFacility, err := l.reachableUnits(ctx, ev.UserID)
		if err != nil {
			logger.Error("cascade failed to resolve deactivated user's units",
				"user_id", ev.UserID, "error", err)
			return
		}
		for facilityID, unitIDs := range unitsByFacility {
			for _, unitID := range unitIDs {
				l.submitAdd(facilityID, unitID, ev.UserID, models.SourceUserDeactivation, ev.ActorID)
			}
		}

	default:
		logger.Warn("cascade received unknown event", "kind", e.Kind())
	}
}

func (l *Listener) submitAdd(facilityID, unitID, userID string, source models.DenylistSource, actorID string) {
	l.facilityPool(facilityID).Submit(func() {
		l.handleAdd(context.Background(), facilityID, unitID, userID, source, actorID)
	})
}

// reachableUnits returns the union of the user's assigned and shared units,
// grouped by facility.
func (l *Listener) reachableUnits(ctx context.Context, userID string) (map[string][]string, error) {
	seen := make(map[string]struct{})
	var unitIDs []string

	assignments, err := l.store.ListAssignmentsByTenant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	for _, a := range assignments {
		if _, ok := seen[a.UnitID]; !ok {
			seen[a.UnitID] = struct{}{}
			unitIDs = append(unitIDs, a.UnitID)
		}
	}

	shares, err := l.store.ListSharesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing shares: %w", err)
	}
	for _, s := range shares {
		if _, ok := seen[s.UnitID]; !ok {
			seen[s.UnitID] = struct{}{}
			unitIDs = append(unitIDs, s.UnitID)
		}
	}

	byFacility := make(map[string][]string)
	for _, unitID := range unitIDs {
		unit, err := l.store.GetUnit(ctx, unitID)
		if err != nil {
			logger.Warn("cascade skipping unit without facility", "unit_id", unitID, "error", err)
			continue
		}
		byFacility[unit.FacilityID] = append(byFacility[unit.FacilityID], unitID)
	}
	return byFacility, nil
}

// handleAdd denylists a user on every lock of a unit, then unicasts a
// DENYLIST_ADD unless the optimizer proves no live pass could use it.
// Entries are written even when the command is skipped: the store is the
// audit trail and the source of truth for revocation intent.
func (l *Listener) handleAdd(ctx context.Context, facilityID, unitID, userID string, source models.DenylistSource, actorID string) {
	locks, err := l.store.ListLocksByUnit(ctx, unitID)
	if err != nil {
		logger.Error("cascade failed to list unit locks",
			"unit_id", unitID, "user_id", userID, "error", err)
		return
	}
	if len(locks) == 0 {
		return
	}

	expiresAt := l.clock.Now().Add(l.ttl)
	var written []string
	for _, lock := range locks {
		entry := &models.DenylistEntry{
			DeviceID:  lock.ID,
			UserID:    userID,
			ExpiresAt: expiresAt,
			Source:    string(source),
			CreatedBy: actorID,
		}
		if _, err := l.store.UpsertDenylistEntry(ctx, entry); err != nil {
			// A device whose entry was not persisted must not receive the
			// command; the store leads the lock, never the reverse.
			logger.Error("cascade failed to write denylist entry",
				"device_id", lock.ID, "user_id", userID, "error", err)
			continue
		}
		written = append(written, lock.ID)
	}
	if len(written) == 0 {
		return
	}

	skip, err := l.optimizer.ShouldSkipAdd(ctx, userID)
	if err != nil {
		// A superfluous command is benign; a missing one is not.
		logger.Warn("denylist optimizer unavailable, sending command",
			"user_id", userID, "error", err)
		skip = false
	}
	if skip {
		logger.Debug("skipping denylist add, user holds no live pass",
			"user_id", userID, "facility_id", facilityID)
		return
	}

	cmd, err := l.builder.BuildAdd(written, []denylist.Entry{{Sub: userID, Exp: expiresAt.Unix()}})
	if err != nil {
		logger.Error("cascade failed to build denylist add", "user_id", userID, "error", err)
		return
	}
	l.unicast(facilityID, cmd, denylist.CmdTypeAdd)
}

// handleAssigned clears the tenant's denylist entries on the unit's locks
// and unicasts a DENYLIST_REMOVE per facility that still has a non-expired
// entry. Already-expired entries clean the store silently; the locks
// dropped them on their own.
func (l *Listener) handleAssigned(ctx context.Context, ev TenantAssigned) {
	entries, err := l.store.FindDenylistByUnitsAndUser(ctx, []string{ev.UnitID}, ev.TenantID)
	if err != nil {
		logger.Error("cascade failed to find denylist entries",
			"unit_id", ev.UnitID, "tenant_id", ev.TenantID, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	type group struct {
		targets []string
		live    bool
	}
	groups := make(map[string]*group)

	for i := range entries {
		entry := &entries[i]
		if err := l.store.RemoveDenylistEntry(ctx, entry.DeviceID, entry.UserID); err != nil {
			logger.Error("cascade failed to remove denylist entry",
				"device_id", entry.DeviceID, "user_id", entry.UserID, "error", err)
			continue
		}

		facilityID, err := l.store.GetFacilityIDForLock(ctx, entry.DeviceID)
		if err != nil {
			facilityID = ev.FacilityID
		}
		g, ok := groups[facilityID]
		if !ok {
			g = &group{}
			groups[facilityID] = g
		}
		g.targets = append(g.targets, entry.DeviceID)
		if !l.optimizer.ShouldSkipRemove(entry) {
			g.live = true
		}
	}

	for facilityID, g := range groups {
		if !g.live {
			continue
		}
		cmd, err := l.builder.BuildRemove(g.targets, []string{ev.TenantID})
		if err != nil {
			logger.Error("cascade failed to build denylist remove",
				"tenant_id", ev.TenantID, "error", err)
			continue
		}
		l.unicast(facilityID, cmd, denylist.CmdTypeRemove)
	}
}

// unicast delivers one signed command to a facility with a bounded timeout.
// Failures are logged and left; the store already reflects the intent and
// the next cascade event re-reconciles.
func (l *Listener) unicast(facilityID, cmd, cmdType string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.unicastTimeout)
	defer cancel()

	if err := l.sink.UnicastToFacility(ctx, facilityID, cmd); err != nil {
		logger.Error("gateway unicast failed",
			"facility_id", facilityID, "cmd_type", cmdType, "error", err)
		return
	}
	l.metrics.DenylistCommand(cmdType)
}
