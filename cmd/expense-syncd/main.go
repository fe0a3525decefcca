package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/network"
	"github.com/joseph-ayodele/expense-sync/internal/remote"
	"github.com/joseph-ayodele/expense-sync/internal/repository"
	"github.com/joseph-ayodele/expense-sync/internal/session"
	"github.com/joseph-ayodele/expense-sync/internal/syncer"
)

const healthService = "expense-sync"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{Path: cfg.Local.Path, BusyTimeout: 5 * time.Second}, logger)
	if err != nil {
		logger.Error("failed to open local store", "error", err, "path", cfg.Local.Path)
		os.Exit(1)
	}
	defer repository.Close(db, logger)
	store := repository.NewExpenseRepository(db, logger)

	client, prober, cleanup, err := openRemote(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure remote store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	monitor := network.NewMonitor(prober, network.Config{
		Interval: cfg.Network.ProbeInterval,
		Debounce: cfg.Network.Debounce,
	}, logger)

	if cfg.Sync.UserID == "" {
		logger.Warn("SYNC_USER_ID not set, sync passes will be skipped")
	}
	engine := syncer.NewEngine(store, client, monitor, session.Static(cfg.Sync.UserID), logger,
		syncer.WithRemoteTimeout(cfg.Sync.RemoteTimeout),
		syncer.WithPeriodicSync(cfg.Sync.Interval),
	)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	setHealth := func(online bool) {
		st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
		if online {
			st = grpc_health_v1.HealthCheckResponse_SERVING
		}
		healthServer.SetServingStatus(healthService, st)
	}
	monitor.OnChange(func(t network.Transition) {
		setHealth(monitor.IsOnline())
	})

	monitor.Start(ctx)
	setHealth(monitor.IsOnline())
	engine.Start(ctx)
	engine.RequestSync()

	updates, unsubscribe := engine.Subscribe()
	go func() {
		for st := range updates {
			logger.Info("sync status", "status", st.Text(), "last_sync", st.LastSyncText(time.Local), "error", st.LastError)
		}
	}()

	logger.Info("expense-syncd listening", "addr", addr, "remote_mode", cfg.Database.Mode)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	unsubscribe()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Warn("sync engine did not stop cleanly", "error", err)
	}
	monitor.Stop()
	grpcServer.GracefulStop()
}

// openRemote builds the remote client for the configured mode together with
// a prober aimed at it.
func openRemote(ctx context.Context, cfg *common.Config, logger *slog.Logger) (remote.Client, network.Prober, func(), error) {
	if cfg.Database.Mode == common.RemoteModeMemory {
		logger.Warn("using in-process remote store, data is not persisted remotely")
		var prober network.Prober = network.ProberFunc(func(context.Context) error { return nil })
		if cfg.Network.ProbeAddr != "" {
			prober = network.TCPProber{Addr: cfg.Network.ProbeAddr, Timeout: cfg.Network.ProbeTimeout}
		}
		return remote.NewMemoryStore(), prober, func() {}, nil
	}

	pool, err := remote.Open(ctx, remote.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	probeAddr := cfg.Network.ProbeAddr
	if probeAddr == "" {
		if probeAddr, err = remote.ProbeAddr(cfg.Database.DSN); err != nil {
			remote.Close(pool, logger)
			return nil, nil, nil, err
		}
	}
	prober := network.TCPProber{Addr: probeAddr, Timeout: cfg.Network.ProbeTimeout}
	return remote.NewPostgresClient(pool, logger), prober, func() { remote.Close(pool, logger) }, nil
}
