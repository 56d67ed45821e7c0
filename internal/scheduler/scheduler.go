// Package scheduler contains the dispatch loop: on each tick it scans
// the post store for due posts, claims each one with a conditional
// update, fans the publishes out to the registered platforms and
// persists the resulting status.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/postqueue/internal/dispatch"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/publisher"
	"github.com/maheshrc27/postqueue/internal/repository"
)

const (
	DefaultPublishTimeout = 30 * time.Second
	DefaultConcurrency    = 10
)

type Scheduler struct {
	pr  repository.PostRepository
	dh  repository.DispatchHistoryRepository
	pm  repository.PostMediaRepository
	ma  repository.MediaAssetRepository
	reg *publisher.Registry
	pol dispatch.Policy

	publishTimeout time.Duration
	concurrency    int

	now     func() time.Time
	running atomic.Bool
}

type Option func(*Scheduler)

func WithPublishTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.publishTimeout = d }
}

func WithConcurrency(n int) Option {
	return func(s *Scheduler) { s.concurrency = n }
}

// WithHistory records one dispatch_history row per post/platform attempt.
func WithHistory(dh repository.DispatchHistoryRepository) Option {
	return func(s *Scheduler) { s.dh = dh }
}

// WithMedia resolves attached media so their URLs ride along in the
// publish payload.
func WithMedia(pm repository.PostMediaRepository, ma repository.MediaAssetRepository) Option {
	return func(s *Scheduler) { s.pm = pm; s.ma = ma }
}

func withClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(pr repository.PostRepository, reg *publisher.Registry, pol dispatch.Policy, opts ...Option) *Scheduler {
	s := &Scheduler{
		pr:             pr,
		reg:            reg,
		pol:            pol,
		publishTimeout: DefaultPublishTimeout,
		concurrency:    DefaultConcurrency,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	return s
}

// Run is the cron entrypoint. Ticks never overlap: if the previous
// batch is still in flight the tick is skipped.
func (s *Scheduler) Run() {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("previous tick still running, skipping")
		return
	}
	defer s.running.Store(false)

	if err := s.Tick(context.Background()); err != nil {
		slog.Error("tick failed", "error", err)
	}
}

// Tick executes one scan-and-dispatch cycle. A store read failure
// aborts the cycle and is retried on the next tick; publish failures
// never surface as errors.
func (s *Scheduler) Tick(ctx context.Context) error {
	posts, err := s.pr.List(ctx)
	if err != nil {
		return fmt.Errorf("loading posts: %w", err)
	}

	due := s.pol.Due(posts, s.now())
	if len(due) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.concurrency)

	for _, post := range due {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()
			s.dispatch(ctx, post)
		}(post)
	}

	wg.Wait()
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, post *models.Post) {
	claimed := post.Clone()
	claimed.Status = models.PostStatusDispatching

	ok, err := s.pr.CompareAndUpdate(ctx, post.ID, models.PostStatusPending, claimed)
	if err != nil {
		slog.Error("claiming post", "post_id", post.ID, "error", err)
		return
	}
	if !ok {
		// Another dispatcher moved it first.
		return
	}

	outcomes := s.publishAll(ctx, claimed)
	decision := s.pol.Resolve(claimed, outcomes)

	updated := claimed.Clone()
	updated.Status = decision.Status
	updated.Attempts = decision.Attempts
	updated.FailReason = decision.FailReason

	ok, err = s.pr.CompareAndUpdate(ctx, post.ID, models.PostStatusDispatching, updated)
	if err != nil {
		// The publish already happened; the post stays in dispatching
		// and startup reconciliation will retry it. At-least-once.
		slog.Error("persisting dispatch result", "post_id", post.ID, "error", err)
		return
	}
	if !ok {
		slog.Warn("dispatch result lost a conditional update, leaving for reconciliation", "post_id", post.ID)
		return
	}

	slog.Info("post dispatched",
		"post_id", post.ID,
		"status", decision.Status,
		"attempts", decision.Attempts)
}

func (s *Scheduler) publishAll(ctx context.Context, post *models.Post) []publisher.Outcome {
	payload := publisher.NewPayload(post, s.mediaURLs(ctx, post.ID))

	outcomes := make([]publisher.Outcome, 0, len(post.Platforms))
	for _, platform := range post.Platforms {
		outcome := s.publishOne(ctx, platform, payload)
		outcomes = append(outcomes, outcome)
		s.recordHistory(ctx, post, platform, outcome)
	}
	return outcomes
}

func (s *Scheduler) publishOne(ctx context.Context, platform string, payload *publisher.Payload) publisher.Outcome {
	pub, ok := s.reg.Resolve(platform)
	if !ok {
		return publisher.Permanent(fmt.Sprintf("no publisher registered for platform %q", platform))
	}

	pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	outcome := pub.Publish(pctx, payload)
	if outcome.Code != publisher.OutcomeSuccess && pctx.Err() == context.DeadlineExceeded {
		return publisher.Transient(fmt.Sprintf("publish to %s timed out after %s", platform, s.publishTimeout))
	}
	return outcome
}

func (s *Scheduler) recordHistory(ctx context.Context, post *models.Post, platform string, outcome publisher.Outcome) {
	if s.dh == nil {
		return
	}
	history := models.DispatchHistory{
		PostID:   post.ID,
		Platform: platform,
		Outcome:  outcome.Code,
		Detail:   outcome.Detail,
		Attempt:  post.Attempts + 1,
	}
	if _, err := s.dh.Create(ctx, &history); err != nil {
		slog.Error("saving dispatch history", "post_id", post.ID, "error", err)
	}
}

func (s *Scheduler) mediaURLs(ctx context.Context, postID int64) []string {
	if s.pm == nil || s.ma == nil {
		return nil
	}

	media, err := s.pm.ListByPostID(ctx, postID)
	if err != nil {
		slog.Error("listing post media", "post_id", postID, "error", err)
		return nil
	}

	var urls []string
	for _, pm := range media {
		asset, err := s.ma.GetByID(ctx, pm.AssetID)
		if err != nil || asset == nil {
			continue
		}
		urls = append(urls, asset.FileURL)
	}
	return urls
}
