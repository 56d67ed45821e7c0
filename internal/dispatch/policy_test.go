package dispatch

import (
	"testing"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/publisher"
)

func TestDueFiltersAndOrders(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		{ID: 1, Status: models.PostStatusPending, ScheduledAt: now.Add(time.Hour)},
		{ID: 2, Status: models.PostStatusPending, ScheduledAt: now.Add(-time.Minute)},
		{ID: 3, Status: models.PostStatusPosted, ScheduledAt: now.Add(-time.Hour)},
		{ID: 4, Status: models.PostStatusPending, ScheduledAt: now.Add(-time.Hour)},
		{ID: 5, Status: models.PostStatusDispatching, ScheduledAt: now.Add(-time.Hour)},
		{ID: 6, Status: models.PostStatusPending, ScheduledAt: now.Add(-time.Minute)},
		{ID: 7, Status: models.PostStatusFailed, ScheduledAt: now.Add(-time.Hour)},
	}

	due := NewPolicy(3).Due(posts, now)

	wantIDs := []int64{4, 2, 6}
	if len(due) != len(wantIDs) {
		t.Fatalf("got %d due posts, want %d", len(due), len(wantIDs))
	}
	for i, want := range wantIDs {
		if due[i].ID != want {
			t.Fatalf("due[%d].ID = %d, want %d", i, due[i].ID, want)
		}
	}
}

func TestDueExactScheduledTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		{ID: 1, Status: models.PostStatusPending, ScheduledAt: now},
	}

	due := NewPolicy(3).Due(posts, now)
	if len(due) != 1 {
		t.Fatalf("post scheduled exactly at now should be due, got %d", len(due))
	}
}

func TestResolveTransitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		attempts     int
		outcomes     []publisher.Outcome
		wantStatus   string
		wantAttempts int
		wantReason   bool
	}{
		{
			name:         "all success",
			outcomes:     []publisher.Outcome{publisher.Success(), publisher.Success()},
			wantStatus:   models.PostStatusPosted,
			wantAttempts: 1,
		},
		{
			name:         "permanent failure wins over success",
			outcomes:     []publisher.Outcome{publisher.Success(), publisher.Permanent("content rejected")},
			wantStatus:   models.PostStatusFailed,
			wantAttempts: 1,
			wantReason:   true,
		},
		{
			name:         "permanent failure wins over transient",
			outcomes:     []publisher.Outcome{publisher.Transient("rate limited"), publisher.Permanent("content rejected")},
			wantStatus:   models.PostStatusFailed,
			wantAttempts: 1,
			wantReason:   true,
		},
		{
			name:         "transient retries under limit",
			outcomes:     []publisher.Outcome{publisher.Transient("timeout")},
			wantStatus:   models.PostStatusPending,
			wantAttempts: 1,
		},
		{
			name:         "transient at limit fails",
			attempts:     2,
			outcomes:     []publisher.Outcome{publisher.Transient("timeout")},
			wantStatus:   models.PostStatusFailed,
			wantAttempts: 3,
			wantReason:   true,
		},
	}

	policy := NewPolicy(3)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			post := &models.Post{ID: 1, Attempts: tt.attempts}
			got := policy.Resolve(post, tt.outcomes)
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.Attempts != tt.wantAttempts {
				t.Fatalf("Attempts = %d, want %d", got.Attempts, tt.wantAttempts)
			}
			if tt.wantReason && got.FailReason == "" {
				t.Fatal("expected a fail reason")
			}
			if !tt.wantReason && got.FailReason != "" {
				t.Fatalf("unexpected fail reason %q", got.FailReason)
			}
		})
	}
}

func TestResolveRetryBound(t *testing.T) {
	t.Parallel()
	policy := NewPolicy(3)
	post := &models.Post{ID: 1, Status: models.PostStatusPending}

	// A publisher that always fails transiently must exhaust the post
	// after exactly MaxAttempts attempts, never more.
	for i := 0; i < policy.MaxAttempts; i++ {
		decision := policy.Resolve(post, []publisher.Outcome{publisher.Transient("flaky")})
		post.Status = decision.Status
		post.Attempts = decision.Attempts
	}

	if post.Status != models.PostStatusFailed {
		t.Fatalf("Status = %s, want %s", post.Status, models.PostStatusFailed)
	}
	if post.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", post.Attempts)
	}
}

func TestNewPolicyDefault(t *testing.T) {
	t.Parallel()
	if got := NewPolicy(0).MaxAttempts; got != DefaultMaxAttempts {
		t.Fatalf("MaxAttempts = %d, want %d", got, DefaultMaxAttempts)
	}
}
