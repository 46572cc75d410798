package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffbridge/staffbridge/modules"
	corepersistence "github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence"
	importservices "github.com/staffbridge/staffbridge/modules/hrimport/services"
	"github.com/staffbridge/staffbridge/pkg/application"
	"github.com/staffbridge/staffbridge/pkg/configuration"
	"github.com/staffbridge/staffbridge/pkg/constants"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
	"github.com/staffbridge/staffbridge/pkg/httpapi"
	"github.com/staffbridge/staffbridge/pkg/metrics"
	"github.com/staffbridge/staffbridge/pkg/middleware"
	"github.com/staffbridge/staffbridge/pkg/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	poolCtx, poolCancel := context.WithTimeout(ctx, time.Second*5)
	defer poolCancel()
	pool, err := pgxpool.New(poolCtx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	if err := application.ApplySchemas(ctx, app); err != nil {
		log.Fatalf("failed to apply schemas: %v", err)
	}

	skipAuth := []string{"/health", conf.Prometheus.Path}
	app.RegisterMiddleware(
		middleware.Cors(strings.Split(conf.AllowedOrigins, ",")...),
		middleware.Provide(constants.PoolKey, pool),
		middleware.Provide(constants.AppKey, app),
		middleware.WithLogger(logger),
		middleware.RequestParams(),
		middleware.TenantContext(corepersistence.NewTenantRepository(), skipAuth...),
		middleware.BasicAuth(corepersistence.NewUserRepository(), skipAuth...),
	)
	app.RegisterControllers(newHealthController())
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	scheduler := app.Service(importservices.ImportScheduler{}).(*importservices.ImportScheduler)
	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("import scheduler stopped")
		}
	}()

	serverInstance := server.NewHTTPServer(
		app,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		}),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		}),
	)
	logger.Infof("listening on %s", conf.SocketAddress)
	if err := serverInstance.StartWithContext(ctx, conf.SocketAddress, shutdownTimeout); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to start server: %v", err)
	}
	configuration.Use().Unload()
}
