package batch

import (
	"context"
	"time"
)

// Store persists batch job records keyed by (owner key, job id).
// Implementations expire records after a TTL; an expired record is
// indistinguishable from one that never existed.
type Store interface {
	SaveJob(ctx context.Context, job *BatchJobRecord) error
	GetJob(ctx context.Context, ownerKey, jobID string) (*BatchJobRecord, bool, error)
	ListJobs(ctx context.Context, ownerKey string) ([]*BatchJobRecord, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
