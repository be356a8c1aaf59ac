package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-orderflow/api/routes"
	"github.com/angelmondragon/packfinderz-orderflow/internal/bootstrap"
	"github.com/angelmondragon/packfinderz-orderflow/internal/notifications"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt := bootstrap.Start("api")
	defer rt.Close()
	logg := rt.Logger

	dbClient := rt.Database()
	redisClient := rt.Redis()
	stack := rt.Orders(dbClient, prometheus.DefaultRegisterer)
	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	rt.Must("notifications service", err)

	// PORT is set by the hosting platform and wins over config.
	port := os.Getenv("PORT")
	if port == "" {
		port = rt.Config.App.Port
	}
	addr := ":" + port

	ctx, stop := rt.SignalContext(map[string]any{"addr": addr})
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(rt.Config, logg, dbClient, redisClient, stack.Orders, stack.Reviews, notificationsService),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()
	logg.Info(ctx, "api listening")

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			rt.Fatal("api server stopped", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api shutdown incomplete", err)
		}
	}
	logg.Info(ctx, "api stopped")
}
