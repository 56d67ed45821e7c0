package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postqueue/internal/models"
)

// ErrValidation marks intake rejections. Nothing is written when a
// Create fails with it.
var ErrValidation = errors.New("post is not valid")

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	// CompareAndUpdate replaces the mutable fields of the record only if
	// its current status equals expectedStatus. It reports false on a
	// status mismatch and is the only mutation path after Create.
	CompareAndUpdate(ctx context.Context, id int64, expectedStatus string, post *models.Post) (bool, error)
	// ReconcileStale moves posts stuck in dispatching since before
	// olderThan back to pending, attempts unchanged.
	ReconcileStale(ctx context.Context, olderThan time.Time) (int64, error)
}

func ValidatePost(post *models.Post) error {
	if post == nil {
		return fmt.Errorf("%w: post is nil", ErrValidation)
	}
	if post.Text == "" {
		return fmt.Errorf("%w: text is empty", ErrValidation)
	}
	if len(post.Platforms) == 0 {
		return fmt.Errorf("%w: no platforms selected", ErrValidation)
	}
	return nil
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, text, platforms, groups, tags, priority, scheduled_at, status, attempts, fail_reason, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	if err := ValidatePost(post); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO posts (text, platforms, groups, tags, priority, scheduled_at, status, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		RETURNING id
	`

	var id int64
	var err error

	args := []any{post.Text, pq.Array(post.Platforms), pq.Array(post.Groups), pq.Array(post.Tags), post.Priority, post.ScheduledAt, models.PostStatusPending}
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY scheduled_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) CompareAndUpdate(ctx context.Context, id int64, expectedStatus string, post *models.Post) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			attempts = $2,
			fail_reason = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query, post.Status, post.Attempts, post.FailReason, time.Now(), id, expectedStatus)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) ReconcileStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`

	result, err := r.db.ExecContext(ctx, query, models.PostStatusPending, time.Now(), models.PostStatusDispatching, olderThan)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.Text,
		pq.Array(&post.Platforms),
		pq.Array(&post.Groups),
		pq.Array(&post.Tags),
		&post.Priority,
		&post.ScheduledAt,
		&post.Status,
		&post.Attempts,
		&post.FailReason,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}
