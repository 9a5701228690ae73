// Command bidhouse-server runs the auction bidding and settlement core.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/bidhouse/internal/auth"
	"github.com/and161185/bidhouse/internal/config"
	"github.com/and161185/bidhouse/internal/metrics"
	"github.com/and161185/bidhouse/internal/migrate"
	"github.com/and161185/bidhouse/internal/realtime"
	"github.com/and161185/bidhouse/internal/redisclient"
	"github.com/and161185/bidhouse/internal/repository"
	"github.com/and161185/bidhouse/internal/repository/memory"
	"github.com/and161185/bidhouse/internal/repository/postgres"
	grpcserver "github.com/and161185/bidhouse/internal/server/grpc"
	httpserver "github.com/and161185/bidhouse/internal/server/http"
	"github.com/and161185/bidhouse/internal/service"
	"github.com/and161185/bidhouse/internal/sweeper"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("grpc", cfg.GRPCAddr),
		zap.String("store", cfg.Store),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := metrics.Nop()
	if cfg.StatsdAddr != "" {
		rec, err = metrics.New(cfg.StatsdAddr, "bidhouse.", []string{"version:" + version}, logger)
		if err != nil {
			logger.Fatal("statsd", zap.Error(err))
		}
	}
	defer func() { _ = rec.Close() }()

	// Ledger store
	var (
		ledger repository.LedgerStore
		inbox  repository.NotificationRepository
	)
	switch cfg.Store {
	case config.StoreMemory:
		mem := memory.NewLedger()
		ledger, inbox = mem, mem
		logger.Warn("using in-memory store, state is lost on exit")
	default:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, cfg.DSN, postgres.Timeouts{Lock: cfg.LockTimeout, Statement: cfg.StatementTimeout})
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		defer db.Close()
		ledger, inbox = postgres.NewLedger(db), postgres.NewNotificationRepo(db)
	}

	// Realtime backbone
	var bb realtime.Backbone = realtime.NewLocalBackbone()
	if cfg.RedisAddr != "" {
		pool, err := redisclient.Connect(ctx, cfg.RedisAddr, redisclient.Options{Password: cfg.RedisPassword, Retries: 3}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer pool.Close()
		bb = realtime.NewRedisBackbone(pool, cfg.RealtimeChannel, logger)
	}
	hub := realtime.NewHub(logger)
	channel := realtime.NewChannel(hub, bb, logger, rec)
	verifier := auth.NewVerifier([]byte(cfg.JWTKey))

	// Services
	bidSvc := service.NewBidService(ledger, channel, rec, logger)
	itemSvc := service.NewItemService(ledger)
	inboxSvc := service.NewNotificationService(inbox)
	sw := sweeper.New(ledger, channel, rec, logger, sweeper.Config{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatch,
		Workers:   cfg.SweepWorkers,
	})

	var bg sync.WaitGroup
	bg.Add(2)
	go func() {
		defer bg.Done()
		if err := channel.Run(ctx); err != nil {
			logger.Error("realtime channel stopped", zap.Error(err))
		}
	}()
	go func() {
		defer bg.Done()
		sw.Run(ctx)
	}()

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	router := httpserver.NewRouter(httpserver.Deps{
		Bids:          bidSvc,
		Items:         itemSvc,
		Notifications: inboxSvc,
		Verifier:      verifier,
		Realtime:      realtime.NewHandler(hub, verifier, logger, cfg.WSSendBuffer, cfg.AllowedOrigins),
		Checks: []httpserver.Check{
			{Name: "store", Ping: ledger.Ping},
			{Name: "backbone", Ping: channel.Ping},
		},
		Log: logger,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// gRPC health
	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		var opts []grpc.ServerOption
		if cfg.TLSCert != "" {
			creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				logger.Fatal("failed to load TLS cert/key", zap.Error(err))
			}
			opts = append(opts, grpc.Creds(creds))
		}
		hs := health.NewServer()
		grpcSrv = grpcserver.NewServer(logger, hs, opts...)
		if cfg.Dev {
			reflection.Register(grpcSrv)
		}
		reporter := grpcserver.NewHealthReporter(hs, 10*time.Second, logger,
			grpcserver.Check{Name: "store", Ping: ledger.Ping},
			grpcserver.Check{Name: "backbone", Ping: channel.Ping},
		)
		bg.Add(1)
		go func() {
			defer bg.Done()
			reporter.Run(ctx)
		}()

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("listen", zap.Error(err))
		}
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", cfg.TLSCert != ""))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		done := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			grpcSrv.Stop()
		}
	}
	bg.Wait()

	logger.Info("shutdown complete")
}
