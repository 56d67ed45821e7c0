package publisher

import (
	"context"
	"sort"
	"sync"

	"github.com/maheshrc27/postqueue/internal/models"
)

const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomePermanent = "permanent"
)

// Outcome is the result of one publish attempt. Publish failures are
// data, not errors; the dispatch policy folds them into the post's
// next status.
type Outcome struct {
	Code   string
	Detail string
}

func Success() Outcome {
	return Outcome{Code: OutcomeSuccess}
}

func Transient(detail string) Outcome {
	return Outcome{Code: OutcomeTransient, Detail: detail}
}

func Permanent(detail string) Outcome {
	return Outcome{Code: OutcomePermanent, Detail: detail}
}

// Payload is the normalized subset of a post handed to a platform.
type Payload struct {
	PostID    int64    `json:"post_id"`
	Text      string   `json:"text"`
	Groups    []string `json:"groups,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, payload *Payload) Outcome
}

// Registry maps platform identifiers to their publish capability.
// Adding a platform is a registration, not a code branch.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
}

func NewRegistry() *Registry {
	return &Registry{publishers: make(map[string]Publisher)}
}

func (r *Registry) Register(platform string, p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[platform] = p
}

func (r *Registry) Resolve(platform string) (Publisher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.publishers[platform]
	return p, ok
}

func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	platforms := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		platforms = append(platforms, name)
	}
	sort.Strings(platforms)
	return platforms
}

// NewPayload builds the wire payload for one post.
func NewPayload(post *models.Post, mediaURLs []string) *Payload {
	return &Payload{
		PostID:    post.ID,
		Text:      post.Text,
		Groups:    post.Groups,
		Tags:      post.Tags,
		MediaURLs: mediaURLs,
	}
}
