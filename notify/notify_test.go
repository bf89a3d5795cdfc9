package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/puoklam/social-graph-backend/db/model"
	"go.uber.org/zap"
)

type fakeSockets struct {
	to     uint
	msg    []byte
	frames int
}

func (f *fakeSockets) SendToUser(userID uint, msg []byte) int {
	f.to, f.msg = userID, msg
	f.frames++
	return 1
}

type fakeStore struct {
	users  map[uint]*model.User
	tokens map[uint][]string
}

func (f *fakeStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (f *fakeStore) PushTokens(ctx context.Context, userID uint) ([]string, error) {
	return f.tokens[userID], nil
}

type fakePusher struct {
	calls  int
	tokens []string
	body   string
	err    error
}

func (f *fakePusher) Push(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	f.calls++
	f.tokens, f.body = tokens, body
	return f.err
}

func newFixture() (*fakeSockets, *fakeStore, *fakePusher, *Dispatcher) {
	sockets := &fakeSockets{}
	store := &fakeStore{
		users: map[uint]*model.User{
			1: {Base: model.Base{ID: 1}, Username: "alice"},
			2: {Base: model.Base{ID: 2}, Username: "bob"},
		},
		tokens: map[uint][]string{2: {"ExponentPushToken[bob]"}},
	}
	pusher := &fakePusher{}
	return sockets, store, pusher, NewDispatcher(sockets, store, store, pusher, zap.NewNop())
}

// deliver runs ev through both handlers the way the two nsq channels do.
func deliver(t *testing.T, d *Dispatcher, ev *model.FollowEvent) {
	t.Helper()
	ctx := context.Background()
	if err := d.HandleSockets(ctx, ev); err != nil {
		t.Fatalf("sockets: %v", err)
	}
	if err := d.HandlePush(ctx, ev); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func TestDispatcherFollow(t *testing.T) {
	sockets, _, pusher, d := newFixture()

	deliver(t, d, &model.FollowEvent{Type: model.EventFollow, ActorID: 1, TargetID: 2})
	if sockets.to != 2 {
		t.Fatalf("delivered to %d, want 2", sockets.to)
	}
	var out outEvent
	if err := json.Unmarshal(sockets.msg, &out); err != nil {
		t.Fatalf("decode socket message: %v", err)
	}
	if out.Actor == nil || out.Actor.Username != "alice" {
		t.Fatalf("missing actor in %s", sockets.msg)
	}
	if pusher.calls != 1 || pusher.body != "alice started following you" {
		t.Fatalf("unexpected push %+v", pusher)
	}
}

func TestDispatcherUnfollowDoesNotPush(t *testing.T) {
	sockets, _, pusher, d := newFixture()

	deliver(t, d, &model.FollowEvent{Type: model.EventUnfollow, ActorID: 1, TargetID: 2})
	if sockets.msg == nil {
		t.Fatal("unfollow not delivered to sockets")
	}
	if pusher.calls != 0 {
		t.Fatal("unfollow should not push")
	}
}

func TestDispatcherUnknownActor(t *testing.T) {
	sockets, _, pusher, d := newFixture()

	deliver(t, d, &model.FollowEvent{Type: model.EventFollow, ActorID: 99, TargetID: 2})
	if sockets.msg == nil || pusher.calls != 0 {
		t.Fatalf("want socket delivery without push, got msg=%s pushes=%d", sockets.msg, pusher.calls)
	}
}

func TestPushFailureDoesNotResendSocketFrame(t *testing.T) {
	sockets, _, pusher, d := newFixture()
	pusher.err = errors.New("expo unavailable")
	ctx := context.Background()
	ev := &model.FollowEvent{Type: model.EventFollow, ActorID: 1, TargetID: 2}

	if err := d.HandleSockets(ctx, ev); err != nil {
		t.Fatalf("sockets handler must not requeue: %v", err)
	}
	// nsq redelivers on the push channel only
	for i := 0; i < 2; i++ {
		if err := d.HandlePush(ctx, ev); !errors.Is(err, pusher.err) {
			t.Fatalf("attempt %d: want push error, got %v", i, err)
		}
	}
	if sockets.frames != 1 {
		t.Fatalf("want exactly one socket frame, got %d", sockets.frames)
	}
	if pusher.calls != 2 {
		t.Fatalf("want 2 push attempts, got %d", pusher.calls)
	}
}

func TestHandlePushWithoutTokens(t *testing.T) {
	_, store, pusher, d := newFixture()
	delete(store.tokens, 2)

	if err := d.HandlePush(context.Background(), &model.FollowEvent{Type: model.EventFollow, ActorID: 1, TargetID: 2}); err != nil {
		t.Fatal(err)
	}
	if pusher.calls != 0 {
		t.Fatal("pushed without tokens")
	}
}

func TestExpoPusherHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewExpoPusher(zap.NewNop())
	err := p.Push(ctx, []string{"ExponentPushToken[bob]"}, "New follower", "alice started following you", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
