// Package service hosts the background maintenance jobs of the OCR
// service. Currently that is the TTL sweep of stored batch job records.
package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/jus-team/legal-ocr-service/pkg/icron"
	"github.com/jus-team/legal-ocr-service/pkg/log"
)

// ExpiringStore is the slice of the job store the sweeper needs.
type ExpiringStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically deletes expired batch job records. Clients keep
// their own history cache, so a swept job is forgotten server-side but
// still listed (as a stale summary) by the owner's client.
type Sweeper struct {
	store    ExpiringStore
	cron     *cron.Cron
	schedule string
}

func NewSweeper(store ExpiringStore, c *cron.Cron, schedule string) *Sweeper {
	return &Sweeper{
		store:    store,
		cron:     c,
		schedule: schedule,
	}
}

var sweepGroup singleflight.Group

// Schedule registers the sweep on the cron instance. The caller owns
// starting and stopping the cron.
func (s *Sweeper) Schedule(ctx context.Context) error {
	runFunc := func() {
		_, _, _ = sweepGroup.Do("sweep", func() (any, error) {
			if _, err := s.RunOnce(ctx); err != nil {
				log.Error("Expiry sweep failed: %v", err)
			}
			return nil, nil
		})
	}
	if _, err := s.cron.AddFunc(s.schedule, runFunc); err != nil {
		return err
	}

	if info, err := icron.GetTriggerInfo(s.schedule, time.Now()); err == nil {
		log.Info("Expiry sweep scheduled (%s), next run in %s", s.schedule, info.TimeUntilNext.Round(time.Second))
	}
	return nil
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Info("Expiry sweep removed %d batch job records", deleted)
	}
	return deleted, nil
}
