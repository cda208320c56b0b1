package agent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weftlabs/weft/internal/ai"
	"github.com/weftlabs/weft/internal/history"
	"github.com/weftlabs/weft/internal/logging"
	"github.com/weftlabs/weft/internal/queue"
	"github.com/weftlabs/weft/internal/state"
)

// Supervisor runs workers for every active feature under a history
// root. It rescans the root on each poll interval and spawns workers
// for features that appear while it is running. Terminal features are
// skipped; workers for features that finish keep polling idly until the
// supervisor stops.
type Supervisor struct {
	defs       []Definition
	repo       *history.Repo
	queue      *queue.Queue
	backend    ai.Backend
	logger     *logging.Logger
	interval   time.Duration
	workerOpts func(featureID string) []WorkerOption
}

// NewSupervisor creates a supervisor over the given agent definitions.
// workerOpts may be nil; when set it supplies per-feature worker options
// such as the worktree to apply patches into.
func NewSupervisor(defs []Definition, repo *history.Repo, backend ai.Backend, logger *logging.Logger, interval time.Duration, workerOpts func(featureID string) []WorkerOption) *Supervisor {
	if logger == nil {
		logger = logging.Discard()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Supervisor{
		defs:       defs,
		repo:       repo,
		queue:      queue.New(repo.Path()),
		backend:    backend,
		logger:     logger,
		interval:   interval,
		workerOpts: workerOpts,
	}
}

// Run scans for features and runs their workers until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	running := make(map[string]bool)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.scan(ctx, g, running)

		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// scan starts workers for features not yet covered.
func (s *Supervisor) scan(ctx context.Context, g *errgroup.Group, running map[string]bool) {
	features, err := s.repo.Features(ctx)
	if err != nil {
		s.logger.Warn("feature scan failed", "error", err.Error())
		return
	}

	for _, featureID := range features {
		if running[featureID] {
			continue
		}
		if fs, err := state.Load(state.Path(s.repo.Path(), featureID)); err == nil && fs.Status.IsTerminal() {
			continue
		}
		running[featureID] = true

		opts := []WorkerOption{WithPollInterval(s.interval)}
		if s.workerOpts != nil {
			opts = append(opts, s.workerOpts(featureID)...)
		}

		s.logger.WithFeature(featureID).Info("feature discovered", "agents", len(s.defs))
		for _, def := range s.defs {
			worker := NewWorker(def, featureID, s.queue, s.backend, s.logger, opts...)
			g.Go(func() error {
				return worker.Run(ctx)
			})
		}
	}
}
