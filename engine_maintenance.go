package authcore

import (
	"context"
	"time"
)

type contextPruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

type memoryPruner interface {
	Prune(now time.Time) int
}

// PruneResult counts the rows removed by PruneExpired.
type PruneResult struct {
	Challenges    int64
	RevokedTokens int64
}

// PruneExpired deletes expired challenges and revoked tokens past their
// retention from backends that keep them until removed. Redis backends
// expire on their own and are skipped. Expired entries are already ignored
// on read, so pruning only reclaims space.
func (e *Engine) PruneExpired(ctx context.Context) (PruneResult, error) {
	if !e.ready() {
		return PruneResult{}, ErrEngineNotReady
	}
	now := e.now()

	var res PruneResult
	var err error
	if res.Challenges, err = prune(ctx, e.stores.codes, now); err != nil {
		e.metricInc(MetricBackendFailure)
		e.logger.Printf("authcore: prune challenges failed: %v", err)
		return res, ErrUnexpected
	}
	if res.RevokedTokens, err = prune(ctx, e.stores.revoked, now); err != nil {
		e.metricInc(MetricBackendFailure)
		e.logger.Printf("authcore: prune revoked tokens failed: %v", err)
		return res, ErrUnexpected
	}
	return res, nil
}

func prune(ctx context.Context, store any, now time.Time) (int64, error) {
	switch s := store.(type) {
	case contextPruner:
		return s.Prune(ctx, now)
	case memoryPruner:
		return int64(s.Prune(now)), nil
	default:
		return 0, nil
	}
}
