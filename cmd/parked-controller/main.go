package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wkrzos/parked/internal/bus"
	"github.com/wkrzos/parked/internal/config"
	"github.com/wkrzos/parked/internal/controller"
	"github.com/wkrzos/parked/internal/db"
	"github.com/wkrzos/parked/internal/dedup"
	"github.com/wkrzos/parked/internal/grpcapi"
	"github.com/wkrzos/parked/internal/httpapi"
	"github.com/wkrzos/parked/internal/logger"
	"github.com/wkrzos/parked/internal/metrics"
	"github.com/wkrzos/parked/internal/parking/service"
	"github.com/wkrzos/parked/internal/parking/store/sqldb"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "parked-controller: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Datastore
	conn, err := db.Open(ctx, db.Config{
		Driver: cfg.DB.Driver,
		Path:   cfg.DB.Path,
		DSN:    cfg.DB.DSN,
		Env:    cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()

	if cfg.Env == "dev" && cfg.DB.SeedDev {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
			return err
		}
		log.Info("dev seed applied")
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	// Services
	gates := service.NewGateService(service.NewGateRegistry(cfg.Gates), sqldb.NewGateLogStore(writer), log)
	registrations := service.NewRegistrationService(sqldb.NewRegistrationStore(writer), log)

	// Duplicate filter
	var dd dedup.Store
	if cfg.Dedup.Enabled {
		dd, err = newDedup(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer dd.Close()
	}

	// Bus
	mq, err := bus.DialMQTT(ctx, bus.MQTTConfig{
		BrokerURL:      cfg.Bus.BrokerURL,
		ClientID:       cfg.Bus.ClientID,
		Username:       cfg.Bus.Username,
		Password:       cfg.Bus.Password,
		QoS:            cfg.Bus.QoS,
		ConnectTimeout: cfg.Bus.ConnectTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer mq.Close()

	ctrl := controller.New(controller.Dependencies{
		Logger:         log,
		Bus:            mq,
		Identity:       cfg.Identity,
		RequestTopic:   cfg.Bus.RequestTopic,
		ResponseTopic:  cfg.Bus.ResponseTopic,
		Gates:          gates,
		Registrations:  registrations,
		Dedup:          dd,
		DedupTTL:       cfg.Dedup.TTL,
		Metrics:        rec,
		QueueSize:      cfg.Controller.QueueSize,
		HandlerTimeout: cfg.Controller.HandlerTimeout,
	})
	if err := ctrl.Subscribe(ctx); err != nil {
		return err
	}

	ready := readiness(conn, mq)

	// Ops HTTP
	if cfg.Ops.HTTPAddr != "" {
		srv := httpapi.NewServer(httpapi.Dependencies{
			Logger:   log,
			Addr:     cfg.Ops.HTTPAddr,
			Ready:    ready,
			Gatherer: reg,
		})
		go func() {
			log.Info("ops http listening", zap.String("addr", cfg.Ops.HTTPAddr))
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops http server error", zap.Error(err))
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// gRPC health
	if cfg.Ops.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Ops.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen %s: %w", cfg.Ops.GRPCAddr, err)
		}
		hs := grpcapi.NewHealthServer(grpcapi.ReadyFunc(ready), cfg.Ops.CheckInterval, log)
		go func() {
			log.Info("grpc health listening", zap.String("addr", cfg.Ops.GRPCAddr))
			if err := hs.Serve(ctx, lis); err != nil {
				log.Error("grpc health server error", zap.Error(err))
				stop()
			}
		}()
		defer hs.Stop()
	}

	log.Info("controller running",
		zap.String("identity", cfg.Identity),
		zap.String("broker", cfg.Bus.BrokerURL),
		zap.String("db_driver", cfg.DB.Driver))

	return ctrl.Run(ctx)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Log.Format == "" {
		return logger.NewForEnvironment(cfg.Env, cfg.Log.Level)
	}
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

func newDedup(ctx context.Context, cfg config.Config, log *zap.Logger) (dedup.Store, error) {
	if cfg.Dedup.RedisAddr != "" {
		rs, err := dedup.NewRedisStore(ctx, dedup.RedisConfig{
			Addr:     cfg.Dedup.RedisAddr,
			Password: cfg.Dedup.RedisPassword,
			DB:       cfg.Dedup.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		log.Info("dedup store: redis", zap.String("addr", cfg.Dedup.RedisAddr))
		return rs, nil
	}

	ms := dedup.NewMemoryStore()
	sw := dedup.NewSweeper(ms, cfg.Dedup.SweepInterval, log)
	sw.Start(ctx)
	return &sweptStore{MemoryStore: ms, sweeper: sw}, nil
}

// sweptStore stops the sweeper when the store is closed.
type sweptStore struct {
	*dedup.MemoryStore
	sweeper *dedup.Sweeper
}

func (s *sweptStore) Close() error {
	s.sweeper.Stop()
	return s.MemoryStore.Close()
}

func readiness(conn *sqlx.DB, b bus.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := conn.PingContext(ctx); err != nil {
			return fmt.Errorf("db: %w", err)
		}
		if !b.Connected() {
			return errors.New("bus: not connected")
		}
		return nil
	}
}
