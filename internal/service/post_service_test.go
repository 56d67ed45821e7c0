package service

import (
	"context"
	"errors"
	"mime/multipart"
	"testing"

	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/transfer"
)

func newTestService() (PostService, repository.PostRepository) {
	repo := repository.NewMemoryPostRepository()
	return NewPostService(nil, repo, nil, nil, nil, nil), repo
}

func TestCreatePostValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		pc   *transfer.PostCreation
	}{
		{name: "nil submission", pc: nil},
		{
			name: "empty text",
			pc:   &transfer.PostCreation{Platforms: `["mastodon"]`, ScheduledTime: "2025-06-01T12:00"},
		},
		{
			name: "no platforms",
			pc:   &transfer.PostCreation{Text: "hello", ScheduledTime: "2025-06-01T12:00"},
		},
		{
			name: "empty platform list",
			pc:   &transfer.PostCreation{Text: "hello", Platforms: `[]`, ScheduledTime: "2025-06-01T12:00"},
		},
		{
			name: "malformed platforms",
			pc:   &transfer.PostCreation{Text: "hello", Platforms: `not-json`, ScheduledTime: "2025-06-01T12:00"},
		},
		{
			name: "bad scheduled time",
			pc:   &transfer.PostCreation{Text: "hello", Platforms: `["mastodon"]`, ScheduledTime: "tomorrow"},
		},
		{
			name: "bad priority",
			pc:   &transfer.PostCreation{Text: "hello", Platforms: `["mastodon"]`, ScheduledTime: "2025-06-01T12:00", Priority: "high"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newTestService()

			_, err := svc.CreatePost(context.Background(), tt.pc, nil)
			if !errors.Is(err, repository.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}

			posts, err := repo.List(context.Background())
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(posts) != 0 {
				t.Fatalf("rejected intake must not write, found %d posts", len(posts))
			}
		})
	}
}

func TestCreatePostSuccess(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService()

	id, err := svc.CreatePost(context.Background(), &transfer.PostCreation{
		Text:          "Launch day!",
		Platforms:     `["mastodon","facebook"]`,
		Groups:        `["marketing"]`,
		Tags:          `["launch","v2"]`,
		Priority:      "5",
		ScheduledTime: "2025-06-01T12:00",
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	post, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if post == nil {
		t.Fatal("post not stored")
	}
	if len(post.Platforms) != 2 || post.Priority != 5 || len(post.Tags) != 2 {
		t.Fatalf("stored post = %+v", post)
	}
	if post.ScheduledAt.Hour() != 12 {
		t.Fatalf("ScheduledAt = %v", post.ScheduledAt)
	}
}

func TestCreatePostRejectsMediaWithoutStorage(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService()

	files := []*multipart.FileHeader{{Filename: "a.png"}}
	_, err := svc.CreatePost(context.Background(), &transfer.PostCreation{
		Text:          "hello",
		Platforms:     `["mastodon"]`,
		ScheduledTime: "2025-06-01T12:00",
	}, files)
	if !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	posts, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("rejected intake must not write, found %d posts", len(posts))
	}
}
