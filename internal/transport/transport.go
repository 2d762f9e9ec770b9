// Package transport hosts the inbound request surfaces: a one-shot TCP
// socket, an SMS gateway bridge, and a small HTTP API. Every transport feeds
// the same router and runs as its own goroutine for the process lifetime.
package transport

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"treksafer/internal/config"
	"treksafer/internal/router"
)

// Transport is one inbound request surface.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string

	// Listen serves requests until Stop is called or the context ends.
	Listen(ctx context.Context) error

	// Stop shuts the transport down; in-flight requests get the context's
	// remaining time to drain.
	Stop(ctx context.Context) error
}

// factories is the closed set of transport variants keyed by config type.
var factories = map[string]func(config.TransportConfig, router.Service, *slog.Logger) (Transport, error){
	"socket": newSocketTransport,
	"sms":    newSMSTransport,
	"http":   newHTTPTransport,
}

// Build constructs every enabled transport from configuration.
func Build(settings *config.Settings, svc router.Service, logger *slog.Logger) ([]Transport, error) {
	var transports []Transport
	for i, cfg := range settings.Transports {
		if !cfg.Enabled {
			continue
		}
		factory, ok := factories[cfg.Type]
		if !ok {
			return nil, fmt.Errorf("transports[%d]: unknown transport type %q", i, cfg.Type)
		}
		t, err := factory(cfg, svc, logger)
		if err != nil {
			return nil, fmt.Errorf("transports[%d] (%s): %w", i, cfg.Type, err)
		}
		transports = append(transports, t)
	}
	return transports, nil
}

// Serve runs every transport until the context is cancelled, then stops them
// with the drain timeout and returns the first listen error, if any.
func Serve(ctx context.Context, transports []Transport, drain func() (context.Context, context.CancelFunc), logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, t := range transports {
		logger.Info("starting transport", "transport", t.Name())
		g.Go(func() error { return t.Listen(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := drain()
		defer cancel()
		for _, t := range transports {
			if err := t.Stop(stopCtx); err != nil {
				logger.Warn("transport stop failed", "transport", t.Name(), "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}
