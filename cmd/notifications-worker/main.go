package main

import (
	"context"
	"errors"

	gpubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/packfinderz-orderflow/internal/bootstrap"
	"github.com/angelmondragon/packfinderz-orderflow/internal/notifications"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/idempotency"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/registry"
)

const (
	orderConsumerName  = "order-notifications"
	promptConsumerName = "review-prompt-notifications"
)

func main() {
	rt := bootstrap.Start("notifications-worker")
	defer rt.Close()
	logg := rt.Logger

	dbClient := rt.Database()
	redisClient := rt.Redis()
	pubsubClient := rt.PubSub()

	dedup, err := idempotency.NewDedup(redisClient, rt.Config.Eventing.OutboxIdempotencyTTL)
	rt.Must("event dedup", err)

	repo := notifications.NewRepository(dbClient.DB())
	decoders := registry.NewPayloadDecoders()
	newConsumer := func(name string, sub *gpubsub.Subscriber) consumer {
		c, err := notifications.NewConsumer(notifications.ConsumerParams{
			Name:         name,
			Repository:   repo,
			Subscription: sub,
			Dedup:        dedup,
			Decoders:     decoders,
			Logger:       logg,
		})
		rt.Must("consumer "+name, err)
		return c
	}

	consumers := []consumer{newConsumer(orderConsumerName, pubsubClient.OrdersSubscription())}
	// The review prompt subscription is optional; without it prompts are only
	// visible through the pending reviews endpoint.
	if sub := pubsubClient.NotificationSubscription(); sub != nil {
		consumers = append(consumers, newConsumer(promptConsumerName, sub))
	}

	service, err := NewService(ServiceParams{
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		PubSub:     pubsubClient,
		Consumers:  consumers,
		HealthAddr: ":" + rt.Config.App.Port,
	})
	rt.Must("notifications worker", err)

	ctx, stop := rt.SignalContext(map[string]any{"consumers": len(consumers)})
	defer stop()
	logg.Info(ctx, "notifications worker started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("notifications worker stopped", err)
	}
	logg.Info(ctx, "notifications worker stopped")
}
