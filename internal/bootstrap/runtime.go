// Package bootstrap wires the process-level pieces every orderflow binary
// shares: env loading, config, the logger, connections and signal handling.
package bootstrap

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/migrate"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/pubsub"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/redis"
)

type closer struct {
	name string
	c    io.Closer
}

// Runtime owns a process's config, logger and open connections. Close (and
// Fatal) release connections newest first.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger

	closers []closer
	exit    func(code int)
}

// Start loads .env and config for service and builds its logger. A config
// error ends the process.
func Start(service string) *Runtime {
	rt := &Runtime{
		Service: service,
		Logger:  logger.New(logger.Options{ServiceName: service}),
		exit:    os.Exit,
	}
	if err := godotenv.Load(); err != nil {
		rt.Logger.Debug(context.Background(), ".env not loaded, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		rt.Fatal("load config", err)
	}
	cfg.Service.Kind = service
	rt.Config = cfg
	rt.Logger = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	return rt
}

// Fatal logs err, closes what is open and exits non-zero.
func (rt *Runtime) Fatal(msg string, err error) {
	rt.Logger.Error(context.Background(), msg, err)
	rt.Close()
	rt.exit(1)
}

// Must ends the process when err is non-nil.
func (rt *Runtime) Must(msg string, err error) {
	if err != nil {
		rt.Fatal(msg, err)
	}
}

func (rt *Runtime) track(name string, c io.Closer) {
	rt.closers = append(rt.closers, closer{name: name, c: c})
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].c.Close(); err != nil {
			rt.Logger.Error(context.Background(), "close "+rt.closers[i].name, err)
		}
	}
	rt.closers = nil
}

// Database opens Postgres and, in dev with auto-migrate on, applies pending
// migrations.
func (rt *Runtime) Database() *db.Client {
	ctx := context.Background()
	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	rt.Must("connect database", err)
	rt.track("database", client)
	rt.Must("dev migrations", migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client))
	return client
}

func (rt *Runtime) Redis() *redis.Client {
	client, err := redis.New(context.Background(), rt.Config.Redis, rt.Logger)
	rt.Must("connect redis", err)
	rt.track("redis", client)
	return client
}

func (rt *Runtime) PubSub() *pubsub.Client {
	client, err := pubsub.NewClient(context.Background(), rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	rt.Must("connect pubsub", err)
	rt.track("pubsub", client)
	return client
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the process
// identity on every log line.
func (rt *Runtime) SignalContext(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Service,
		"instance":    InstanceID(),
	}
	for k, v := range fields {
		base[k] = v
	}
	return rt.Logger.WithFields(ctx, base), stop
}

// InstanceID names this process in logs: WORKER_ID when set, else the
// platform's replica name, else the hostname.
func InstanceID() string {
	for _, key := range []string{"WORKER_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
