package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"trusthub.org/internal/auth"
	"trusthub.org/internal/config"
	"trusthub.org/internal/httpapi"
	"trusthub.org/internal/migrate"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
	"trusthub.org/internal/store/memory"
	"trusthub.org/internal/store/pg"
	"trusthub.org/migrations"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		obs.Error("fatal", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Version == "dev" && version != "dev" {
		cfg.Version = version
	}
	obs.Init()
	obs.InitBuildInfo(cfg.Version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	proxies, err := cfg.Proxies()
	if err != nil {
		return err
	}
	api := httpapi.New(st, httpapi.Options{
		Version:        cfg.Version,
		RateBurst:      cfg.RateBurst,
		RatePerSec:     cfg.RatePerSec,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		TrustedProxies: proxies,
	})
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewHealthServer(st, 5*time.Second)
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errc := make(chan error, 2)
	go health.Run(ctx)
	go func() {
		obs.Info("grpc_listening", map[string]any{"addr": cfg.GRPCAddr})
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- err
		}
	}()
	go func() {
		obs.Info("http_listening", map[string]any{"addr": cfg.HTTPAddr, "version": cfg.Version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		stop()
		obs.Error("server_failed", map[string]any{"error": err.Error()})
	}
	obs.Info("shutting_down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	health.Shutdown()
	grpcDone := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(grpcDone)
	}()
	err = srv.Shutdown(shutdownCtx)
	select {
	case <-grpcDone:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}
	obs.Info("stopped", nil)
	return err
}

// openStore picks Postgres when a database URL is configured and the
// in-memory store otherwise. Staff accounts are created only from
// explicit credentials.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		obs.Info("store_selected", map[string]any{"kind": "memory"})
		st := memory.New()
		if err := seedStaff(ctx, st, cfg); err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}

	st, err := pg.Open(cfg.DatabaseURL, pg.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = st.Close() }
	if cfg.MigrateOnStart {
		mctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := migrate.NewManager(st.DB(), migrations.Schema()).Up(mctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		obs.Info("migrations_applied", nil)
	}
	if err := seedStaff(ctx, st, cfg); err != nil {
		closeFn()
		return nil, nil, err
	}
	obs.Info("store_selected", map[string]any{"kind": "postgres"})
	return st, closeFn, nil
}

func seedStaff(ctx context.Context, st store.Store, cfg config.Config) error {
	staff := cfg.Staff()
	if len(staff) == 0 {
		obs.Info("staff_seed_skipped", map[string]any{"reason": "no staff credentials configured"})
		return nil
	}
	return auth.NewService(st).EnsureStaff(ctx, staff)
}
