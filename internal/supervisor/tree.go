// Package supervisor runs the bot's long-lived services under a suture tree.
//
// The root supervisor has three children, each restarted independently:
//
//	countingbot
//	├── effects-layer   (side-effect dispatcher, disconnect reporter)
//	├── gateway-layer   (session manager, event router)
//	└── api-layer       (ops HTTP server)
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig tunes restart behavior for every supervisor in the tree.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns the restart settings used in production.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the supervisor hierarchy.
type Tree struct {
	root    *suture.Supervisor
	effects *suture.Supervisor
	gateway *suture.Supervisor
	api     *suture.Supervisor
	config  TreeConfig
}

// NewTree builds the hierarchy. Zero fields in config take their defaults.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	handler := &sutureslog.Handler{Logger: logger.With("component", "supervisor")}
	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = handler.MustHook()

	t := &Tree{
		root:    suture.New("countingbot", rootSpec),
		effects: suture.New("effects-layer", spec),
		gateway: suture.New("gateway-layer", spec),
		api:     suture.New("api-layer", spec),
		config:  config,
	}
	t.root.Add(t.effects)
	t.root.Add(t.gateway)
	t.root.Add(t.api)
	return t
}

// AddEffectsService adds a service to the effects layer.
func (t *Tree) AddEffectsService(svc suture.Service) suture.ServiceToken {
	return t.effects.Add(svc)
}

// AddGatewayService adds a service to the gateway layer.
func (t *Tree) AddGatewayService(svc suture.Service) suture.ServiceToken {
	return t.gateway.Add(svc)
}

// AddAPIService adds a service to the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored shutdown.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
