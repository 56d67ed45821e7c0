package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postqueue/internal/models"
)

// memoryPostRepository keeps posts in a mutex-guarded map. It is used
// for zero-config runs and in tests; it offers the same conditional
// update semantics as the Postgres store but no crash durability.
type memoryPostRepository struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
}

func NewMemoryPostRepository() PostRepository {
	return &memoryPostRepository{
		nextID: 1,
		posts:  make(map[int64]*models.Post),
	}
}

func (r *memoryPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	if err := ValidatePost(post); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stored := post.Clone()
	stored.ID = r.nextID
	stored.Status = models.PostStatusPending
	stored.Attempts = 0
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.posts[stored.ID] = stored
	r.nextID++

	return stored.ID, nil
}

func (r *memoryPostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return post.Clone(), nil
}

func (r *memoryPostRepository) List(ctx context.Context) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	posts := make([]*models.Post, 0, len(r.posts))
	for _, post := range r.posts {
		posts = append(posts, post.Clone())
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].ScheduledAt.Equal(posts[j].ScheduledAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].ScheduledAt.Before(posts[j].ScheduledAt)
	})
	return posts, nil
}

func (r *memoryPostRepository) CompareAndUpdate(ctx context.Context, id int64, expectedStatus string, post *models.Post) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.posts[id]
	if !ok || current.Status != expectedStatus {
		return false, nil
	}

	updated := current.Clone()
	updated.Status = post.Status
	updated.Attempts = post.Attempts
	updated.FailReason = post.FailReason
	updated.UpdatedAt = time.Now()
	r.posts[id] = updated

	return true, nil
}

func (r *memoryPostRepository) ReconcileStale(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, post := range r.posts {
		if post.Status == models.PostStatusDispatching && post.UpdatedAt.Before(olderThan) {
			updated := post.Clone()
			updated.Status = models.PostStatusPending
			updated.UpdatedAt = time.Now()
			r.posts[id] = updated
			count++
		}
	}
	return count, nil
}
