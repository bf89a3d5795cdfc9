package mq

import (
	"context"
	"encoding/json"

	"github.com/nsqio/go-nsq"
	"github.com/puoklam/social-graph-backend/db/model"
	"go.uber.org/zap"
)

const TopicFollows = "follows"

// publisher is the subset of *nsq.Producer used here.
type publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

type Producer struct {
	p      publisher
	topic  string
	logger *zap.Logger
}

func NewProducer(addr string, logger *zap.Logger) (*Producer, error) {
	cfg := nsq.NewConfig()
	p, err := nsq.NewProducer(addr, cfg)
	if err != nil {
		return nil, err
	}
	p.SetLoggerLevel(nsq.LogLevelWarning)
	return &Producer{p: p, topic: TopicFollows, logger: logger}, nil
}

// Publish sends ev to the follows topic.
func (p *Producer) Publish(ctx context.Context, ev *model.FollowEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.p.Publish(p.topic, b)
}

func (p *Producer) Stop() {
	p.p.Stop()
}
