package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish clears the pause Pub/Sub puts on an ordering key after a
	// failed publish.
	ResumePublish(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// orderedPublisher publishes with message ordering on so each order's events
// reach subscribers in sequence.
type orderedPublisher struct {
	topic *gcppubsub.Publisher
}

func newOrderedPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return &orderedPublisher{topic: p}
}

func (p *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return serverResult{p.topic.Publish(ctx, msg)}
}

func (p *orderedPublisher) ResumePublish(orderingKey string) {
	p.topic.ResumePublish(orderingKey)
}

// Stop flushes pending messages and releases the topic's goroutines.
func (p *orderedPublisher) Stop() {
	p.topic.Stop()
}

type serverResult struct {
	res *gcppubsub.PublishResult
}

func (r serverResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}
