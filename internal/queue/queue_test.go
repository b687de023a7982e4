package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	want := Message{Type: "post.review", Body: []byte("post-1")}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-msgs:
		if got.Type != want.Type || string(got.Body) != string(want.Body) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	// Fill the buffer, then cancel: the next publish must not block forever.
	if err := q.Publish(ctx, Message{Type: "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	cancel()
	if err := q.Publish(ctx, Message{Type: "y"}); err == nil {
		t.Fatal("publish into a full queue with cancelled context should fail")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	cases := []Message{
		{Type: "post.review", Body: []byte("post-42")},
		{Type: "post.review", Body: []byte("")},
		{Type: "a", Body: []byte("body|with|pipes")},
	}
	for _, msg := range cases {
		got := deserialize(serialize(msg))
		if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
			t.Errorf("round trip of %+v gave %+v", msg, got)
		}
	}
}

func TestDeserializeBareBody(t *testing.T) {
	got := deserialize("no-separator")
	if got.Type != "" || string(got.Body) != "no-separator" {
		t.Errorf("deserialize = %+v", got)
	}
}
