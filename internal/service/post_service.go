package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const scheduledTimeLayout = "2006-01-02T15:04"

type PostService interface {
	CreatePost(ctx context.Context, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error)
	List(ctx context.Context) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID int64) (*models.Post, error)
	History(ctx context.Context, postID int64) ([]*models.DispatchHistory, error)
}

type postService struct {
	db *sql.DB
	pr repository.PostRepository
	ma repository.MediaAssetRepository
	pm repository.PostMediaRepository
	dh repository.DispatchHistoryRepository
	r2 *R2Service
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	ma repository.MediaAssetRepository,
	pm repository.PostMediaRepository,
	dh repository.DispatchHistoryRepository,
	r2 *R2Service) PostService {
	return &postService{
		db: db,
		pr: pr,
		ma: ma,
		pm: pm,
		dh: dh,
		r2: r2,
	}
}

func (s *postService) CreatePost(ctx context.Context, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error) {
	if pc == nil {
		err := fmt.Errorf("%w: post creation data is nil", repository.ErrValidation)
		slog.Info(err.Error())
		return 0, err
	}

	post, err := s.buildPost(pc)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	if len(files) > 0 && (s.r2 == nil || s.ma == nil || s.pm == nil) {
		err := fmt.Errorf("%w: media storage is not configured", repository.ErrValidation)
		slog.Info(err.Error())
		return 0, err
	}

	// No database, no transaction: the in-memory store appends in one
	// step and media is already rejected above.
	if s.db == nil {
		return s.pr.Create(ctx, nil, post)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	postID, err := s.pr.Create(ctx, tx, post)
	if err != nil {
		return 0, err
	}

	if err = s.processFiles(ctx, tx, postID, files); err != nil {
		return 0, fmt.Errorf("error processing files: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return postID, nil
}

func (s *postService) buildPost(pc *transfer.PostCreation) (*models.Post, error) {
	if pc.Text == "" {
		return nil, fmt.Errorf("%w: text is empty", repository.ErrValidation)
	}

	scheduledAt, err := time.Parse(scheduledTimeLayout, pc.ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid scheduled time: %v", repository.ErrValidation, err)
	}

	platforms, err := parseStringList(pc.Platforms)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid platforms: %v", repository.ErrValidation, err)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no platforms selected", repository.ErrValidation)
	}

	groups, err := parseStringList(pc.Groups)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid groups: %v", repository.ErrValidation, err)
	}

	tags, err := parseStringList(pc.Tags)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid tags: %v", repository.ErrValidation, err)
	}

	priority := 0
	if pc.Priority != "" {
		priority, err = strconv.Atoi(pc.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid priority: %v", repository.ErrValidation, err)
		}
	}

	return &models.Post{
		Text:        pc.Text,
		Platforms:   platforms,
		Groups:      groups,
		Tags:        tags,
		Priority:    priority,
		ScheduledAt: scheduledAt,
	}, nil
}

func parseStringList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *postService) processFiles(ctx context.Context, tx *sql.Tx, postID int64, files []*multipart.FileHeader) error {
	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
	}

	for i, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return fmt.Errorf("error opening file: %w", err)
		}
		defer fileContent.Close()

		fileBytes, err := io.ReadAll(fileContent)
		if err != nil {
			return fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return errors.New("unsupported file type")
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		assetID, err := s.saveFile(ctx, tx, fileType.MIME.Value, fileBytes)
		if err != nil {
			return fmt.Errorf("error uploading file: %w", err)
		}

		postMedia := models.PostMedia{
			PostID:       postID,
			AssetID:      assetID,
			DisplayOrder: i,
		}
		if err := s.pm.Create(ctx, tx, &postMedia); err != nil {
			return fmt.Errorf("error saving media file: %w", err)
		}
	}
	return nil
}

func (s *postService) saveFile(ctx context.Context, tx *sql.Tx, contentType string, file []byte) (int64, error) {
	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	if err := s.r2.Upload(ctx, key, file, contentType); err != nil {
		return 0, err
	}

	ma := models.MediaAsset{
		FileName: key,
		FileType: contentType,
		FileSize: int64(len(file)),
		FileURL:  s.r2.PublicURL(key),
	}

	assetID, err := s.ma.Create(ctx, tx, &ma)
	if err != nil {
		return 0, err
	}

	return assetID, nil
}

func (s *postService) PostInfo(ctx context.Context, postID int64) (*models.Post, error) {
	if postID == 0 {
		err := fmt.Errorf("%w: post id is not valid", repository.ErrValidation)
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil {
		err = fmt.Errorf("%w: post doesn't exist", repository.ErrValidation)
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (s *postService) List(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.pr.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) History(ctx context.Context, postID int64) ([]*models.DispatchHistory, error) {
	if s.dh == nil {
		return nil, nil
	}
	items, err := s.dh.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error listing dispatch history: %w", err)
	}
	return items, nil
}
