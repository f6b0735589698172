package scheduler

import (
	"context"
	"time"
)

type Pruner struct {
	deps      Deps
	retention time.Duration
}

func NewPruner(deps Deps, retention time.Duration) *Pruner {
	deps.defaults()
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Pruner{deps: deps, retention: retention}
}

// Prune deletes reminder marks older than the retention.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	n, err := p.deps.Marks.Prune(ctx, p.deps.Now().Add(-p.retention))
	if err != nil {
		p.deps.Logger.Error("failed to prune reminder marks", "err", err)
		return 0, err
	}
	if n > 0 {
		p.deps.Logger.Info("pruned reminder marks", "count", n)
	}
	return n, nil
}
