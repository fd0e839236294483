package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"restaurant/pkg/restaurant/domain/model"
	"restaurant/pkg/restaurant/domain/service"
	"restaurant/pkg/restaurant/infrastructure/amqp"
	"restaurant/pkg/restaurant/infrastructure/cache"
	"restaurant/pkg/restaurant/infrastructure/event"
	"restaurant/pkg/restaurant/infrastructure/health"
	"restaurant/pkg/restaurant/infrastructure/hub"
	"restaurant/pkg/restaurant/infrastructure/migrations"
	"restaurant/pkg/restaurant/infrastructure/repository"
	"restaurant/pkg/restaurant/infrastructure/transport"
)

var version = "dev"

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:    appID,
		Usage:   "restaurant order service with real-time kitchen, table and admin updates",
		Version: version,
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP/WebSocket server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations and exit",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "down", Usage: "revert all migrations instead"},
				},
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("restaurant stopped with error")
	}
}

func serve(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	db, err := repository.Open(ctx, cfg.database())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}

	tables := tableRepository(ctx, cfg, db)

	h := hub.New()
	dispatcher := event.NewDispatcher().Add("hub", h)
	if cfg.AMQPURL != "" {
		publisher, err := amqp.Dial(cfg.broker())
		if err != nil {
			log.WithError(err).Warn("amqp unavailable, order events stay local")
		} else {
			defer publisher.Close()
			dispatcher.Add("amqp", publisher)
		}
	}

	orderService := service.NewOrderService(
		repository.NewOrderRepository(db),
		tables,
		dispatcher,
		service.Options{StrictTransitions: cfg.StrictStatusTransitions},
	)

	checker := health.NewChecker(db, cfg.HealthCheckInterval)
	router := transport.Router(orderService, h, checker, transport.Options{
		SubmitTimeout: cfg.SubmitTimeout,
		SendBuffer:    cfg.SessionSendBuffer,
		Version:       version,
	})
	srv := &http.Server{Addr: cfg.ServeHTTPAddress, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.GRPCAddress != "" {
		grpcListener, err = net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return errors.Wrapf(err, "listen on %s", cfg.GRPCAddress)
		}
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, checker.Server())
	}

	killSignalChan := getKillSignalChan()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return checker.Run(gctx)
	})
	g.Go(func() error {
		log.WithFields(log.Fields{"url": cfg.ServeHTTPAddress}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			log.WithFields(log.Fields{"url": cfg.GRPCAddress}).Info("Starting gRPC health server")
			return errors.Wrap(grpcServer.Serve(grpcListener), "grpc server")
		})
	}
	g.Go(func() error {
		waitForKillSignalChan(gctx, killSignalChan)
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func migrate(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	db, err := repository.Open(c.Context, cfg.database())
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("down") {
		return migrations.Down(db)
	}
	return migrations.Up(db)
}

func setup() (*config, error) {
	cfg, err := parseEnv()
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, keeping info")
	}
	return cfg, nil
}

func tableRepository(ctx context.Context, cfg *config, db *sqlx.DB) model.TableRepository {
	tables := repository.NewTableRepository(db)
	if cfg.RedisAddress == "" {
		return tables
	}
	rdb, err := cache.Connect(ctx, cfg.redis())
	if err != nil {
		log.WithError(err).Warn("redis unavailable, table lookups go to the database")
		return tables
	}
	go func() {
		<-ctx.Done()
		_ = rdb.Close()
	}()
	return cache.NewTableRepository(tables, rdb, cfg.TableCacheTTL)
}

func getKillSignalChan() chan os.Signal {
	osKillSignalChan := make(chan os.Signal, 1)
	signal.Notify(osKillSignalChan, os.Interrupt, syscall.SIGTERM)
	return osKillSignalChan
}

func waitForKillSignalChan(ctx context.Context, killSignalChan <-chan os.Signal) {
	select {
	case killSignal := <-killSignalChan:
		switch killSignal {
		case os.Interrupt:
			log.Info("Got SIGINT...")
		case syscall.SIGTERM:
			log.Info("Got SIGTERM...")
		}
	case <-ctx.Done():
		log.Info("Stopping after component failure...")
	}
}
