package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemos-io/mnemos/internal/config"
	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/lifecycle"
	"github.com/mnemos-io/mnemos/internal/recovery"
	"github.com/mnemos-io/mnemos/internal/store"
)

// services bundles the wired subsystems a command needs.
type services struct {
	cfg       config.Config
	db        *graph.DB
	retrier   *graph.Retrier
	store     *store.Store
	lifecycle *lifecycle.Service
	recovery  *recovery.Service
}

// openServices connects to the graph store and wires the engines on top of
// the retrying client. The caller must call close when done.
func openServices(ctx context.Context) (*services, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := graph.Open(connectCtx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to graph store: %w", err)
	}

	retrier := graph.NewRetrier(db, cfg.RetryConfig())
	st := store.New(retrier)

	svc := &services{
		cfg:       cfg,
		db:        db,
		retrier:   retrier,
		store:     st,
		lifecycle: lifecycle.New(st, cfg.LifecycleConfig()),
		recovery:  recovery.New(st, cfg.RecoveryConfig()),
	}
	closeAll := func() {
		svc.lifecycle.Close()
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Close(closeCtx)
	}
	return svc, closeAll, nil
}
