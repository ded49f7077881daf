package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moyoez/scangate/api"
	"github.com/moyoez/scangate/api/notifyhub"
	"github.com/moyoez/scangate/coordinator"
	"github.com/moyoez/scangate/notify"
	"github.com/moyoez/scangate/ratelimit"
	"github.com/moyoez/scangate/session"
	"github.com/moyoez/scangate/sweeper"
	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/transfer"
)

func main() {
	cfg := tool.SetFlags()

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)

	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.LoadEnvOverrides(cfg.UseEnvFile, &appCfg)
	tool.ApplyFlagOverrides(&appCfg, cfg)
	if err := tool.ValidateConfig(&appCfg); err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var limitStore ratelimit.Store = ratelimit.NewMemoryStore()
	if appCfg.Redis.Addr != "" {
		client, err := ratelimit.NewRedisClient(ctx, appCfg.Redis)
		if err != nil {
			tool.DefaultLogger.Fatalf("Failed to connect to redis at %s: %v", appCfg.Redis.Addr, err)
		}
		defer client.Close()
		limitStore = ratelimit.NewRedisStore(client, appCfg.Redis.KeyPrefix)
		tool.DefaultLogger.Infof("Rate limit windows shared through redis at %s", appCfg.Redis.Addr)
	}
	limiter, err := ratelimit.New(limitStore, appCfg.RateLimit.MaxRequests, appCfg.RateLimit.Window())
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}

	var hub *notifyhub.Hub
	if appCfg.NotifyWS {
		hub = notifyhub.New()
		notify.SetHub(hub)
	}
	notify.SetNotifyWSEnabled(appCfg.NotifyWS)

	sessions := session.NewMemoryStore(session.WithExpireHook(coordinator.ExpiredNotifier(notify.Publish)))
	assembler := transfer.NewHTTPAssembler(appCfg.Backend, nil, nil)
	coord := coordinator.New(sessions, assembler, coordinator.Config{
		SessionTTL:       appCfg.Upload.SessionTTL(),
		ResultRetention:  appCfg.Upload.ResultRetention(),
		MaxTotalChunks:   appCfg.Upload.MaxTotalChunks,
		MaxFileSizeBytes: appCfg.Upload.MaxFileSizeBytes,
	}, coordinator.WithNotifier(notify.Publish))

	runner, err := sweeper.NewRunner([]sweeper.Job{
		{Name: "sessions", Interval: appCfg.Upload.SweepInterval(), Target: coord},
		{Name: "ratelimit", Interval: appCfg.RateLimit.SweepInterval(), Target: limiter},
	})
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	go runner.Run(ctx)

	apiServer := api.NewServer(appCfg, api.Dependencies{
		Uploads: coord,
		Limiter: limiter,
		Sweeper: runner,
		Hub:     hub,
	})
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
		}
	}()
	tool.DefaultLogger.Infof("Forwarding uploads to %s", appCfg.Backend.BaseURL)

	<-ctx.Done()
	tool.DefaultLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Errorf("Graceful shutdown failed: %v", err)
	}
}
