package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/puoklam/social-graph-backend/db/model"
	"go.uber.org/zap"
)

// EventHandler receives decoded follow events.
type EventHandler func(ctx context.Context, ev *model.FollowEvent) error

const handleTimeout = 10 * time.Second

// ChannelPush is shared by every server so each event is pushed once.
const ChannelPush = "push"

// SocketChannel is the per-server channel feeding local sockets. nsqd drops
// ephemeral channels once their last consumer disconnects.
func SocketChannel(serverID string) string {
	return "sockets-" + serverID + "#ephemeral"
}

type Consumer struct {
	c *nsq.Consumer
}

// NewConsumer subscribes channel ch of the follows topic.
func NewConsumer(ch, lookupdAddr string, h EventHandler, logger *zap.Logger) (*Consumer, error) {
	cfg := nsq.NewConfig()
	c, err := nsq.NewConsumer(TopicFollows, ch, cfg)
	if err != nil {
		return nil, err
	}
	c.SetLoggerLevel(nsq.LogLevelWarning)
	c.AddHandler(newMessageHandler(h, logger))
	if err := c.ConnectToNSQLookupd(lookupdAddr); err != nil {
		c.Stop()
		return nil, err
	}
	return &Consumer{c: c}, nil
}

func (c *Consumer) Stop() {
	c.c.Stop()
	<-c.c.StopChan
}

func newMessageHandler(h EventHandler, logger *zap.Logger) nsq.HandlerFunc {
	return func(message *nsq.Message) error {
		var ev model.FollowEvent
		if err := json.Unmarshal(message.Body, &ev); err != nil {
			// malformed messages are dropped, requeueing would loop forever
			logger.Warn("drop malformed follow event", zap.ByteString("body", message.Body), zap.Error(err))
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := h(ctx, &ev); err != nil {
			logger.Warn("handle follow event", zap.String("type", ev.Type), zap.Error(err))
			return err
		}
		return nil
	}
}
