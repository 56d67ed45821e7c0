package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/postqueue/internal/repository"
)

// ReconcileJob returns posts stuck in dispatching to pending. A post
// left mid-dispatch by a crash or a write failure after publish would
// otherwise sit there forever; attempts are left unchanged so the
// retry bound still holds.
type ReconcileJob struct {
	pr         repository.PostRepository
	staleAfter time.Duration
}

func NewReconcileJob(pr repository.PostRepository, staleAfter time.Duration) *ReconcileJob {
	return &ReconcileJob{
		pr:         pr,
		staleAfter: staleAfter,
	}
}

func (j *ReconcileJob) Run() {
	ctx := context.Background()

	cutoff := time.Now().Add(-j.staleAfter)
	count, err := j.pr.ReconcileStale(ctx, cutoff)
	if err != nil {
		slog.Error("reconciling stale posts", "error", err)
		return
	}
	if count > 0 {
		slog.Warn("reconciled interrupted dispatches", "count", count)
	}
}
