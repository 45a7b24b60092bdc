package catastro

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iuslabs/intake-cli/internal/store"
)

// SyncResult summarizes one batch sync pass.
type SyncResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Syncer walks every property that has a referencia catastral but no
// registry snapshot yet and reconciles them one at a time. The OVC service
// is a free public endpoint, so queries are paced rather than parallelized.
type Syncer struct {
	reconciler *Reconciler
	store      store.Store
	limiter    *rate.Limiter
}

// NewSyncer creates a Syncer pacing one registry query per delay interval.
func NewSyncer(reconciler *Reconciler, st store.Store, delay time.Duration) *Syncer {
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}
	return &Syncer{
		reconciler: reconciler,
		store:      st,
		limiter:    rate.NewLimiter(rate.Every(delay), 1),
	}
}

// SyncPending reconciles all pending properties sequentially. Per-property
// failures are logged and counted, never propagated: one bad reference must
// not abort the batch. Context cancellation does stop the pass.
func (s *Syncer) SyncPending(ctx context.Context) (*SyncResult, error) {
	pending, err := s.store.ListPendingCatastro(ctx)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Total: len(pending)}
	for _, prop := range pending {
		if err := s.limiter.Wait(ctx); err != nil {
			return res, err
		}

		if _, err := s.reconciler.Reconcile(ctx, prop.ID); err != nil {
			res.Failed++
			zap.L().Warn("catastro sync: property failed",
				zap.String("property_id", prop.ID),
				zap.Error(err),
			)
			continue
		}
		res.Succeeded++
	}

	zap.L().Info("catastro sync complete",
		zap.Int("total", res.Total),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
