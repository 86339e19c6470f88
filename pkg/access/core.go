// Package access wires the BluLok access core: the operator signer, the
// persistence layer, Route Pass issuance, the fallback exchange, the
// denylist cascade, and the pruner. The Core owns component lifecycles and
// shutdown ordering.
package access

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/internal/logger"
	"github.com/blulok/blulok-cloud/pkg/access/audience"
	"github.com/blulok/blulok-cloud/pkg/access/cascade"
	"github.com/blulok/blulok-cloud/pkg/access/denylist"
	"github.com/blulok/blulok-cloud/pkg/access/gateway"
	"github.com/blulok/blulok-cloud/pkg/access/routepass"
	"github.com/blulok/blulok-cloud/pkg/access/schedule"
	"github.com/blulok/blulok-cloud/pkg/access/signing"
	"github.com/blulok/blulok-cloud/pkg/access/store"
	"github.com/blulok/blulok-cloud/pkg/api"
	"github.com/blulok/blulok-cloud/pkg/config"
	"github.com/blulok/blulok-cloud/pkg/metrics"
	accessprom "github.com/blulok/blulok-cloud/pkg/metrics/prometheus"
)

// Core is the assembled access authorization service.
type Core struct {
	cfg      *config.Config
	store    store.Store
	signer   *signing.Service
	issuer   *routepass.Orchestrator
	fallback *routepass.FallbackVerifier
	pruner   *denylist.Pruner
	listener *cascade.Listener

	apiServer     *api.Server
	metricsServer *metrics.Server
}

// NewCore builds the access core from configuration.
//
// The gateway sink defaults to the logging sink; pass a real sink to
// NewCoreWithSink when an MQTT or gateway transport is available.
func NewCore(cfg *config.Config) (*Core, error) {
	return NewCoreWithSink(cfg, gateway.NewLogSink())
}

// NewCoreWithSink builds the access core with an explicit gateway sink.
func NewCoreWithSink(cfg *config.Config, sink gateway.UnicastSink) (*Core, error) {
	if cfg.Access.OperatorPrivateKeyB64 == "" {
		return nil, fmt.Errorf("operator keys are not configured (run 'blulok keygen' and add them to the config)")
	}

	signer, err := signing.NewService(signing.Config{
		PrivateKeyB64: cfg.Access.OperatorPrivateKeyB64,
		PublicKeyB64:  cfg.Access.OperatorPublicKeyB64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	m := accessprom.NewAccessMetrics()

	clock := clockwork.NewRealClock()

	audiences := audience.NewResolver(st, clock)
	schedules := schedule.NewResolver(st)

	issuer := routepass.NewOrchestrator(
		signer, st, st, audiences, schedules,
		cfg.Access.RoutePassTTL(), clock, m,
	)
	fallback := routepass.NewFallbackVerifier(
		signer, st, issuer,
		cfg.Access.FallbackSkew(), clock, m,
	)
	pruner := denylist.NewPruner(st, cfg.Access.PruneInterval(), clock, m)

	listener := cascade.NewListener(
		st,
		denylist.NewCommandBuilder(signer, clock),
		denylist.NewOptimizer(st, clock),
		sink,
		cascade.Config{RoutePassTTL: cfg.Access.RoutePassTTL()},
		clock,
		m,
	)

	apiServer, err := api.NewServer(cfg.API, api.Deps{
		Signer:   signer,
		Store:    st,
		Issuer:   issuer,
		Fallback: fallback,
		Pruner:   pruner,
		Cascade:  listener,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	core := &Core{
		cfg:       cfg,
		store:     st,
		signer:    signer,
		issuer:    issuer,
		fallback:  fallback,
		pruner:    pruner,
		listener:  listener,
		apiServer: apiServer,
	}
	if cfg.Metrics.Enabled {
		core.metricsServer = metrics.NewServer(cfg.Metrics.Port)
	}
	return core, nil
}

// Store exposes the underlying persistence layer.
func (c *Core) Store() store.Store { return c.store }

// Signer exposes the operator signing service.
func (c *Core) Signer() *signing.Service { return c.signer }

// Run starts all components and blocks until the context is cancelled or a
// server fails.
//
// Shutdown order matters: the API stops accepting requests first, then the
// cascade drains so no accepted mutation loses its denylist update, then
// the pruner stops, and the store closes last.
func (c *Core) Run(ctx context.Context) error {
	c.listener.Start()

	prunerCtx, stopPruner := context.WithCancel(context.Background())
	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		c.pruner.Run(prunerCtx)
	}()

	serverCtx, stopServers := context.WithCancel(ctx)
	defer stopServers()

	errCh := make(chan error, 2)
	go func() {
		if err := c.apiServer.Start(serverCtx); err != nil {
			errCh <- err
		}
	}()
	if c.metricsServer != nil {
		go func() {
			if err := c.metricsServer.Start(serverCtx); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		runErr = err
		logger.Error("server failed, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	stopServers()
	if err := c.apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	if err := c.listener.Stop(shutdownCtx); err != nil {
		logger.Error("cascade drain failed", "error", err)
	}

	stopPruner()
	<-prunerDone

	if err := c.store.Close(); err != nil {
		logger.Error("store close failed", "error", err)
	}

	logger.Info("access core stopped")
	return runErr
}
