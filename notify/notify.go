package notify

import (
	"context"
	"encoding/json"
	"fmt"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/puoklam/social-graph-backend/db/model"
	"go.uber.org/zap"
)

type Sockets interface {
	SendToUser(userID uint, msg []byte) int
}

type TokenStore interface {
	PushTokens(ctx context.Context, userID uint) ([]string, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

type Pusher interface {
	Push(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// Dispatcher delivers follow events to the followed user.
type Dispatcher struct {
	sockets Sockets
	tokens  TokenStore
	users   UserStore
	pusher  Pusher
	logger  *zap.Logger
}

func NewDispatcher(sockets Sockets, tokens TokenStore, users UserStore, pusher Pusher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sockets: sockets, tokens: tokens, users: users, pusher: pusher, logger: logger}
}

type outEvent struct {
	Kind  string             `json:"kind"`
	Event *model.FollowEvent `json:"event"`
	Actor *outUser           `json:"actor,omitempty"`
}

type outUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Picture  string `json:"picture"`
}

func (d *Dispatcher) actor(ctx context.Context, id uint) *outUser {
	u, err := d.users.GetUser(ctx, id)
	if err != nil {
		d.logger.Warn("load follow actor", zap.Uint("actor_id", id), zap.Error(err))
		return nil
	}
	return &outUser{ID: u.ID, Username: u.Username, Picture: u.Picture}
}

// HandleSockets delivers ev to the target's sockets on this server. Every
// server consumes its own channel. Delivery is best effort and never asks
// for a requeue, which would send the frame twice.
func (d *Dispatcher) HandleSockets(ctx context.Context, ev *model.FollowEvent) error {
	out := outEvent{Kind: "relationship", Event: ev, Actor: d.actor(ctx, ev.ActorID)}
	b, err := json.Marshal(out)
	if err != nil {
		d.logger.Error("encode follow event", zap.Error(err))
		return nil
	}
	n := d.sockets.SendToUser(ev.TargetID, b)
	d.logger.Debug("follow event delivered", zap.String("type", ev.Type), zap.Uint("target_id", ev.TargetID), zap.Int("sockets", n))
	return nil
}

// HandlePush sends the mobile push for a follow. It runs on the channel
// shared by all servers so each event is pushed once; errors requeue.
func (d *Dispatcher) HandlePush(ctx context.Context, ev *model.FollowEvent) error {
	if ev.Type != model.EventFollow || d.pusher == nil {
		return nil
	}
	actor := d.actor(ctx, ev.ActorID)
	if actor == nil {
		return nil
	}
	tokens, err := d.tokens.PushTokens(ctx, ev.TargetID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	body := fmt.Sprintf("%s started following you", actor.Username)
	data := map[string]string{"actor_id": fmt.Sprint(ev.ActorID)}
	return d.pusher.Push(ctx, tokens, "New follower", body, data)
}

// ExpoPusher sends notifications through the Expo push service.
type ExpoPusher struct {
	client *expo.PushClient
	logger *zap.Logger
}

func NewExpoPusher(logger *zap.Logger) *ExpoPusher {
	return &ExpoPusher{client: expo.NewPushClient(nil), logger: logger}
}

func (p *ExpoPusher) Push(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := make([]expo.ExponentPushToken, 0, len(tokens))
	for _, t := range tokens {
		pt, err := expo.NewExponentPushToken(t)
		if err != nil {
			p.logger.Warn("skip invalid expo push token", zap.Error(err))
			continue
		}
		to = append(to, pt)
	}
	if len(to) == 0 {
		return nil
	}
	resp, err := p.client.Publish(&expo.PushMessage{
		To:       to,
		Title:    title,
		Body:     body,
		Data:     data,
		Sound:    "default",
		Priority: expo.DefaultPriority,
	})
	if err != nil {
		return err
	}
	return resp.ValidateResponse()
}
