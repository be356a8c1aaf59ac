package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/packfinderz-orderflow/internal/bootstrap"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/registry"
)

func main() {
	rt := bootstrap.Start("outbox-publisher")
	defer rt.Close()

	dbClient := rt.Database()
	pubsubClient := rt.PubSub()

	events, err := registry.NewEventRegistry(rt.Config.PubSub)
	rt.Must("event registry", err)
	service, err := NewService(ServiceParams{
		Config:        rt.Config,
		Logger:        rt.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(),
	})
	rt.Must("outbox publisher", err)

	ctx, stop := rt.SignalContext(nil)
	defer stop()
	rt.Logger.Info(ctx, "outbox publisher started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("outbox publisher stopped", err)
	}
	rt.Logger.Info(ctx, "outbox publisher stopped")
}
