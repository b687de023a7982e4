package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"universe/internal/moderation"
	"universe/internal/queue"
)

type memStore struct {
	posts map[string]*Post
	order []string
}

func newMemStore() *memStore {
	return &memStore{posts: make(map[string]*Post)}
}

func (s *memStore) CreatePost(_ context.Context, p Post) error {
	s.posts[p.ID] = &p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *memStore) GetPost(_ context.Context, id string) (*Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Posts(_ context.Context) ([]Post, error) {
	out := make([]Post, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.posts[s.order[i]])
	}
	return out, nil
}

func (s *memStore) Like(_ context.Context, id string) (bool, error) {
	p, ok := s.posts[id]
	if !ok {
		return false, nil
	}
	p.Likes++
	return true, nil
}

func (s *memStore) SetStatus(_ context.Context, id, status string) error {
	p, ok := s.posts[id]
	if !ok {
		return errors.New("no such post")
	}
	p.Status = status
	return nil
}

// fakeClassifier scripts verdicts per call.
type fakeClassifier struct {
	safe bool
	err  error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (*moderation.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw := "SAFE"
	if !f.safe {
		raw = "UNSAFE"
	}
	return &moderation.Result{IsSafe: f.safe, Raw: raw}, nil
}

type fakePublisher struct {
	published []queue.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg queue.Message) error {
	f.published = append(f.published, msg)
	return nil
}

func newTestService(store *memStore, cls Classifier, pub Publisher, policy string) *Service {
	n := 0
	return NewService(store, cls, pub, policy, func() string {
		n++
		return fmt.Sprintf("post-%d", n)
	})
}

func TestAliasFromWordLists(t *testing.T) {
	for i := 0; i < 100; i++ {
		alias := NewAlias()
		parts := strings.SplitN(alias, " ", 2)
		if len(parts) != 2 {
			t.Fatalf("alias %q is not adjective-noun", alias)
		}
		if !contains(aliasAdjectives, parts[0]) {
			t.Fatalf("adjective %q not in the word list", parts[0])
		}
		if !contains(aliasNouns, parts[1]) {
			t.Fatalf("noun %q not in the word list", parts[1])
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestCreateSafePost(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeClassifier{safe: true}, &fakePublisher{}, PolicyBlock)

	p, err := svc.Create(context.Background(), "author-1", "  midterms are brutal  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Content != "midterms are brutal" {
		t.Errorf("Content = %q, want trimmed", p.Content)
	}
	if p.Status != StatusApproved {
		t.Errorf("Status = %q, want approved", p.Status)
	}
	if p.Alias == "" {
		t.Error("post has no alias")
	}
	if !p.Mine {
		t.Error("creator's own post should read as mine")
	}
}

func TestCreateEmptyContent(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeClassifier{safe: true}, &fakePublisher{}, PolicyBlock)
	if _, err := svc.Create(context.Background(), "author-1", "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("Create = %v, want ErrEmptyContent", err)
	}
}

func TestCreateUnsafeContentBlocked(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeClassifier{safe: false}, &fakePublisher{}, PolicyBlock)

	if _, err := svc.Create(context.Background(), "author-1", "something nasty"); !errors.Is(err, ErrContentBlocked) {
		t.Fatalf("Create = %v, want ErrContentBlocked", err)
	}
	if len(store.posts) != 0 {
		t.Error("blocked post was persisted")
	}
}

func TestCreateClassifierDownFailsClosed(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeClassifier{err: errors.New("timeout")}, pub, PolicyBlock)

	if _, err := svc.Create(context.Background(), "author-1", "hello"); !errors.Is(err, ErrClassifierUnavailable) {
		t.Fatalf("Create = %v, want ErrClassifierUnavailable", err)
	}
	if len(store.posts) != 0 || len(pub.published) != 0 {
		t.Error("fail-closed policy must not persist or queue anything")
	}
}

func TestCreateClassifierDownFailsOpen(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeClassifier{err: errors.New("timeout")}, pub, PolicyAllow)

	p, err := svc.Create(context.Background(), "author-1", "hello")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != StatusPending {
		t.Errorf("Status = %q, want pending", p.Status)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %d, want one review job", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Type != "post.review" || string(msg.Body) != p.ID {
		t.Errorf("review job = %+v", msg)
	}
}

func TestListHidesOthersPendingAndRemoved(t *testing.T) {
	store := newMemStore()
	cls := &fakeClassifier{safe: true}
	svc := newTestService(store, cls, &fakePublisher{}, PolicyAllow)
	ctx := context.Background()

	approved, _ := svc.Create(ctx, "author-1", "an approved one")

	cls.err = errors.New("down")
	minePending, _ := svc.Create(ctx, "viewer", "my pending one")
	theirsPending, _ := svc.Create(ctx, "author-2", "their pending one")

	cls.err = nil
	removed, _ := svc.Create(ctx, "author-3", "to be removed")
	if err := store.SetStatus(ctx, removed.ID, StatusRemoved); err != nil {
		t.Fatal(err)
	}

	feed, err := svc.List(ctx, "viewer")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	ids := make(map[string]Post)
	for _, p := range feed {
		ids[p.ID] = p
	}
	if _, ok := ids[approved.ID]; !ok {
		t.Error("approved post missing from feed")
	}
	if _, ok := ids[minePending.ID]; !ok {
		t.Error("viewer's own pending post missing from feed")
	}
	if _, ok := ids[theirsPending.ID]; ok {
		t.Error("someone else's pending post leaked into feed")
	}
	if _, ok := ids[removed.ID]; ok {
		t.Error("removed post leaked into feed")
	}

	for id, p := range ids {
		if p.AuthorID != "" {
			t.Errorf("post %s leaks author identity %q", id, p.AuthorID)
		}
	}
	if !ids[minePending.ID].Mine {
		t.Error("own post not flagged as mine")
	}
	if ids[approved.ID].Mine {
		t.Error("foreign post flagged as mine")
	}
}

func TestLike(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeClassifier{safe: true}, &fakePublisher{}, PolicyBlock)
	ctx := context.Background()

	p, _ := svc.Create(ctx, "author-1", "like me")
	if err := svc.Like(ctx, p.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if err := svc.Like(ctx, p.ID); err != nil {
		t.Fatalf("Like again: %v", err)
	}
	if got := store.posts[p.ID].Likes; got != 2 {
		t.Errorf("Likes = %d, want 2", got)
	}

	if err := svc.Like(ctx, "ghost"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("Like(ghost) = %v, want ErrPostNotFound", err)
	}
}

func TestReviewSettlesPending(t *testing.T) {
	store := newMemStore()
	cls := &fakeClassifier{err: errors.New("down")}
	svc := newTestService(store, cls, &fakePublisher{}, PolicyAllow)
	ctx := context.Background()

	pending, _ := svc.Create(ctx, "author-1", "waiting on review")

	// Still down: the post stays pending.
	if err := svc.Review(ctx, pending.ID); err == nil {
		t.Fatal("Review should propagate a classifier failure")
	}
	if store.posts[pending.ID].Status != StatusPending {
		t.Errorf("Status = %q, want still pending", store.posts[pending.ID].Status)
	}

	cls.err = nil
	cls.safe = true
	if err := svc.Review(ctx, pending.ID); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if store.posts[pending.ID].Status != StatusApproved {
		t.Errorf("Status = %q, want approved", store.posts[pending.ID].Status)
	}

	// A settled post is left alone even if the verdict would now differ.
	cls.safe = false
	if err := svc.Review(ctx, pending.ID); err != nil {
		t.Fatalf("Review (settled): %v", err)
	}
	if store.posts[pending.ID].Status != StatusApproved {
		t.Errorf("Status = %q, review must not reopen settled posts", store.posts[pending.ID].Status)
	}
}

func TestReviewRemovesUnsafe(t *testing.T) {
	store := newMemStore()
	cls := &fakeClassifier{err: errors.New("down")}
	svc := newTestService(store, cls, &fakePublisher{}, PolicyAllow)
	ctx := context.Background()

	pending, _ := svc.Create(ctx, "author-1", "borderline")

	cls.err = nil
	cls.safe = false
	if err := svc.Review(ctx, pending.ID); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if store.posts[pending.ID].Status != StatusRemoved {
		t.Errorf("Status = %q, want removed", store.posts[pending.ID].Status)
	}

	if err := svc.Review(ctx, "ghost"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("Review(ghost) = %v, want ErrPostNotFound", err)
	}
}
