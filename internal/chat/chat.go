package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"universe/internal/metrics"
)

// Chat kinds. Market chats are keyed deterministically by the participant
// pair and item; secure chats belong to an anonymous post thread.
const (
	KindMarket = "market"
	KindSecure = "secure"
)

// Participant carries the denormalized identity shown inside a market chat.
type Participant struct {
	Email      string `json:"email"`
	RollNumber string `json:"roll_number"`
}

// Chat is a 1:1 conversation.
type Chat struct {
	ID            string                 `json:"id"`
	Kind          string                 `json:"kind"`
	Participants  [2]string              `json:"participants"`
	Details       map[string]Participant `json:"participant_details,omitempty"`
	ItemID        string                 `json:"item_id,omitempty"`
	ItemName      string                 `json:"item_name,omitempty"`
	PostID        string                 `json:"post_id,omitempty"`
	PostContent   string                 `json:"post_content,omitempty"`
	LastMessage   string                 `json:"last_message,omitempty"`
	LastMessageAt time.Time              `json:"last_message_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Has reports whether userID participates in the chat.
func (c *Chat) Has(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Message is one immutable chat line.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("not a participant of this chat")
	ErrEmptyMessage   = errors.New("message cannot be empty")
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateChat(ctx context.Context, c Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	ChatsByPost(ctx context.Context, postID string) ([]Chat, error)
	AllChats(ctx context.Context) ([]Chat, error)
	AppendMessage(ctx context.Context, m Message) error
	Messages(ctx context.Context, chatID string) ([]Message, error)
	TouchChat(ctx context.Context, chatID, lastMessage string, at time.Time) error
}

// Service manages conversations and message streams.
type Service struct {
	store Store
	hub   Hub

	newID func() string
	now   func() time.Time
}

// NewService creates the chat service.
func NewService(store Store, hub Hub, newID func() string) *Service {
	return &Service{store: store, hub: hub, newID: newID, now: time.Now}
}

// marketChatID derives the deterministic conversation key for a pair of
// users and an item, so re-contacting reuses the same thread.
func marketChatID(userA, userB, itemID string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1] + "_" + itemID
}

// OpenMarketChat returns the chat for the pair+item, creating it when
// absent. Creation is idempotent: concurrent opens converge on one record.
func (s *Service) OpenMarketChat(ctx context.Context, me, meEmail, meRoll, other, otherEmail, otherRoll, itemID, itemName string) (*Chat, error) {
	if me == "" || other == "" || itemID == "" {
		return nil, errors.New("missing required chat parameters")
	}

	id := marketChatID(me, other, itemID)
	existing, err := s.store.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	c := Chat{
		ID:           id,
		Kind:         KindMarket,
		Participants: [2]string{me, other},
		Details: map[string]Participant{
			me:    {Email: meEmail, RollNumber: meRoll},
			other: {Email: otherEmail, RollNumber: otherRoll},
		},
		ItemID:    itemID,
		ItemName:  itemName,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateChat(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// OpenSecureChat returns the anonymous thread between a post's author and a
// peer, creating it when no thread for the pair exists yet. Existing chats
// for the post are scanned in memory for the exact participant pair; the
// fan-out per post is expected to stay small.
func (s *Service) OpenSecureChat(ctx context.Context, postID, postContent, opUserID, peerUserID string) (*Chat, error) {
	if postID == "" || opUserID == "" || peerUserID == "" {
		return nil, errors.New("missing required chat parameters")
	}

	existing, err := s.store.ChatsByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Has(opUserID) && existing[i].Has(peerUserID) {
			return &existing[i], nil
		}
	}

	c := Chat{
		ID:           s.newID(),
		Kind:         KindSecure,
		Participants: [2]string{opUserID, peerUserID}, // index 0 is the post author
		PostID:       postID,
		PostContent:  postContent,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateChat(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns a chat the user participates in.
func (s *Service) Get(ctx context.Context, chatID, userID string) (*Chat, error) {
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChatNotFound
	}
	if !c.Has(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// UserChats returns the user's conversations, most recently active first.
// The participant filter runs here rather than in the query.
func (s *Service) UserChats(ctx context.Context, userID string) ([]Chat, error) {
	all, err := s.store.AllChats(ctx)
	if err != nil {
		return nil, err
	}
	mine := all[:0]
	for _, c := range all {
		if c.Has(userID) {
			mine = append(mine, c)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		a, b := mine[i], mine[j]
		at, bt := a.LastMessageAt, b.LastMessageAt
		if at.IsZero() {
			at = a.CreatedAt
		}
		if bt.IsZero() {
			bt = b.CreatedAt
		}
		return at.After(bt)
	})
	return mine, nil
}

// Send appends a message to a chat the sender participates in, bumps the
// chat's denormalized last-message fields, and fans out to subscribers.
func (s *Service) Send(ctx context.Context, chatID, senderID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := s.Get(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	m := Message{
		ID:        s.newID(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.TouchChat(ctx, chatID, content, m.CreatedAt); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()
	s.hub.Publish(ctx, chatID, m)
	return &m, nil
}

// Messages returns a chat's messages ordered by creation time ascending.
func (s *Service) Messages(ctx context.Context, chatID, userID string) ([]Message, error) {
	if _, err := s.Get(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, chatID)
}

// Subscribe delivers messages appended to the chat after the subscription
// starts. The stream stays open until ctx is cancelled; callers replay the
// backlog with Messages first.
func (s *Service) Subscribe(ctx context.Context, chatID, userID string) (<-chan Message, error) {
	if _, err := s.Get(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, chatID)
}
