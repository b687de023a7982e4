package posts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"universe/internal/metrics"
	"universe/internal/moderation"
	"universe/internal/queue"
)

// Post statuses. Pending posts were accepted while the classifier was down
// under the allow policy and await the review worker's verdict.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRemoved  = "removed"
)

// Unavailability policies for the classifier.
const (
	PolicyBlock = "block"
	PolicyAllow = "allow"
)

// Post is an anonymous confession. AuthorID is the real identity and is
// never shown to other users; Alias is the display name, generated fresh
// per post so the same author appears under different aliases.
type Post struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"-"`
	Alias     string    `json:"alias"`
	Likes     int64     `json:"likes"`
	Status    string    `json:"status"`
	Mine      bool      `json:"mine"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrEmptyContent          = errors.New("content cannot be empty")
	ErrContentBlocked        = errors.New("post blocked: content flagged as unsafe")
	ErrClassifierUnavailable = errors.New("content check unavailable, please try again later")
	ErrPostNotFound          = errors.New("post not found")
)

var (
	aliasAdjectives = []string{"Neon", "Silent", "Hidden", "Cosmic", "Urban", "Digital", "Quiet", "Misty", "Solar", "Lunar"}
	aliasNouns      = []string{"Tiger", "Owl", "Ghost", "Walker", "Dreamer", "Echo", "Shadow", "Fox", "Phoenix", "Voyager"}
)

// NewAlias draws a random adjective-noun display name.
func NewAlias() string {
	return aliasAdjectives[rand.Intn(len(aliasAdjectives))] + " " + aliasNouns[rand.Intn(len(aliasNouns))]
}

// Store is the persistence surface the service needs.
type Store interface {
	CreatePost(ctx context.Context, p Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	Posts(ctx context.Context) ([]Post, error)
	Like(ctx context.Context, id string) (bool, error)
	SetStatus(ctx context.Context, id, status string) error
}

// Classifier is the content-safety collaborator.
type Classifier interface {
	Classify(ctx context.Context, text string) (*moderation.Result, error)
}

// Publisher queues review jobs for the worker.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service runs the anonymous feed.
type Service struct {
	store      Store
	classifier Classifier
	reviews    Publisher
	policy     string

	newID func() string
	now   func() time.Time
}

// NewService creates the feed service. policy decides what happens when the
// classifier is unreachable: PolicyBlock rejects the post, PolicyAllow
// stores it as pending and queues it for re-review.
func NewService(store Store, classifier Classifier, reviews Publisher, policy string, newID func() string) *Service {
	if policy != PolicyAllow {
		policy = PolicyBlock
	}
	return &Service{
		store:      store,
		classifier: classifier,
		reviews:    reviews,
		policy:     policy,
		newID:      newID,
		now:        time.Now,
	}
}

// Create publishes an anonymous post after the safety gate.
func (s *Service) Create(ctx context.Context, authorID, content string) (*Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	status := StatusApproved
	verdict, err := s.classifier.Classify(ctx, content)
	switch {
	case err == nil && !verdict.IsSafe:
		metrics.PostsBlocked.Inc()
		return nil, ErrContentBlocked
	case err != nil && s.policy == PolicyBlock:
		log.Printf("posts: classifier unavailable, blocking post: %v", err)
		return nil, ErrClassifierUnavailable
	case err != nil:
		// Accept provisionally; the review worker settles it later.
		log.Printf("posts: classifier unavailable, accepting pending: %v", err)
		status = StatusPending
	}

	p := Post{
		ID:        s.newID(),
		Content:   content,
		AuthorID:  authorID,
		Alias:     NewAlias(),
		Status:    status,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, err
	}

	if status == StatusPending {
		if err := s.reviews.Publish(ctx, queue.Message{Type: "post.review", Body: []byte(p.ID)}); err != nil {
			log.Printf("posts: queue review for %s failed: %v", p.ID, err)
		}
	}

	p.Mine = true
	return &p, nil
}

// List returns the feed for a viewer, newest first: approved posts from
// everyone plus the viewer's own pending ones. Real author identities are
// stripped; the viewer only learns which posts are their own.
func (s *Service) List(ctx context.Context, viewerID string) ([]Post, error) {
	all, err := s.store.Posts(ctx)
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, p := range all {
		mine := p.AuthorID == viewerID
		if p.Status == StatusRemoved {
			continue
		}
		if p.Status == StatusPending && !mine {
			continue
		}
		p.Mine = mine
		p.AuthorID = ""
		visible = append(visible, p)
	}
	return visible, nil
}

// Like increments a post's like counter.
func (s *Service) Like(ctx context.Context, postID string) error {
	liked, err := s.store.Like(ctx, postID)
	if err != nil {
		return err
	}
	if !liked {
		return ErrPostNotFound
	}
	return nil
}

// Author returns the real author of a post, for opening a secure chat with
// the OP. The caller must not expose it.
func (s *Service) Author(ctx context.Context, postID string) (*Post, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPostNotFound
	}
	return p, nil
}

// Review classifies a pending post and settles its status. Used by the
// worker; a classifier failure leaves the post pending for a later retry.
func (s *Service) Review(ctx context.Context, postID string) error {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPostNotFound
	}
	if p.Status != StatusPending {
		return nil
	}

	verdict, err := s.classifier.Classify(ctx, p.Content)
	if err != nil {
		return fmt.Errorf("classify post %s: %w", postID, err)
	}
	status := StatusApproved
	if !verdict.IsSafe {
		status = StatusRemoved
		metrics.PostsBlocked.Inc()
	}
	return s.store.SetStatus(ctx, postID, status)
}
