// Package dispatch holds the pure decision logic of the scheduler:
// which posts are due at a given instant and what a batch of publish
// outcomes means for a post's next status.
package dispatch

import (
	"sort"
	"strings"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/publisher"
)

const DefaultMaxAttempts = 3

type Policy struct {
	MaxAttempts int
}

func NewPolicy(maxAttempts int) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Policy{MaxAttempts: maxAttempts}
}

// Due filters the snapshot down to pending posts whose scheduled time
// has arrived, ordered by scheduled_at ascending with id as the
// tie-break so dispatch order is deterministic.
func (p Policy) Due(posts []*models.Post, now time.Time) []*models.Post {
	var due []*models.Post
	for _, post := range posts {
		if post.Status != models.PostStatusPending {
			continue
		}
		if post.ScheduledAt.After(now) {
			continue
		}
		due = append(due, post)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	return due
}

// Decision is the computed next state of a post after one dispatch
// attempt across all of its platforms.
type Decision struct {
	Status     string
	Attempts   int
	FailReason string
}

// Resolve applies the transition rules to the per-platform outcomes of
// one attempt:
//   - every platform succeeded: posted
//   - any permanent failure: failed, no retry
//   - otherwise at least one transient failure: back to pending while
//     attempts stay under MaxAttempts, failed once they reach it
//
// Attempts is incremented by one for the attempt regardless of result.
func (p Policy) Resolve(post *models.Post, outcomes []publisher.Outcome) Decision {
	attempts := post.Attempts + 1

	var permanent []string
	var transient []string
	for _, o := range outcomes {
		switch o.Code {
		case publisher.OutcomePermanent:
			permanent = append(permanent, o.Detail)
		case publisher.OutcomeTransient:
			transient = append(transient, o.Detail)
		}
	}

	switch {
	case len(permanent) > 0:
		return Decision{
			Status:     models.PostStatusFailed,
			Attempts:   attempts,
			FailReason: strings.Join(permanent, "; "),
		}
	case len(transient) > 0:
		if attempts >= p.MaxAttempts {
			return Decision{
				Status:     models.PostStatusFailed,
				Attempts:   attempts,
				FailReason: strings.Join(transient, "; "),
			}
		}
		return Decision{
			Status:   models.PostStatusPending,
			Attempts: attempts,
		}
	default:
		return Decision{
			Status:   models.PostStatusPosted,
			Attempts: attempts,
		}
	}
}
