package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/postqueue/internal/models"
)

type DispatchHistoryRepository interface {
	Create(ctx context.Context, dh *models.DispatchHistory) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.DispatchHistory, error)
}

type dispatchHistoryRepository struct {
	db *sql.DB
}

func NewDispatchHistoryRepository(db *sql.DB) DispatchHistoryRepository {
	return &dispatchHistoryRepository{db: db}
}

func (r *dispatchHistoryRepository) Create(ctx context.Context, dh *models.DispatchHistory) (int64, error) {
	query := `
		INSERT INTO dispatch_history (post_id, platform, outcome, detail, attempt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, dh.PostID, dh.Platform, dh.Outcome, dh.Detail, dh.Attempt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *dispatchHistoryRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.DispatchHistory, error) {
	query := `
		SELECT id, post_id, platform, outcome, detail, attempt, created_at
		FROM dispatch_history
		WHERE post_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.DispatchHistory
	for rows.Next() {
		var dh models.DispatchHistory
		err := rows.Scan(&dh.ID, &dh.PostID, &dh.Platform, &dh.Outcome, &dh.Detail, &dh.Attempt, &dh.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, &dh)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return items, nil
}
