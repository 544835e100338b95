package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ojudge/internal/cache"
	"ojudge/internal/config"
	"ojudge/internal/controller"
	"ojudge/internal/datapack"
	"ojudge/internal/judge"
	"ojudge/internal/judge/checker"
	"ojudge/internal/judge/runner"
	"ojudge/internal/repository"
	"ojudge/internal/service"
	"ojudge/pkg/utils/logger"
)

const (
	defaultConfigPath    = "config.json"
	defaultAppConfigPath = "configs/ojudge.yaml"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to the service definition file")
	appConfigPath := flag.String("app-config", defaultAppConfigPath, "Path to the deployment config file")
	flushData := flag.Bool("flush-data", false, "Drop all persisted data on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load service config failed: %v\n", err)
		os.Exit(1)
	}
	appCfg, err := loadAppConfig(*appConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	ctx := context.Background()

	store, err := openStore(appCfg.Storage)
	if err != nil {
		logger.Error(ctx, "init store failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()
	if *flushData {
		if err := store.Flush(ctx); err != nil {
			logger.Error(ctx, "flush data failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info(ctx, "persisted data flushed")
	}

	var c cache.Cache = cache.Noop{}
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(appCfg.Redis)
		if err != nil {
			logger.Error(ctx, "init redis failed", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			_ = redisCache.Close()
		}()
		c = redisCache
	}
	standings := cache.NewStandingsCache(c)

	workRoot := appCfg.Judge.WorkRoot
	if workRoot == "" {
		workRoot = filepath.Join(os.TempDir(), "ojudge")
	}
	packs := datapack.NewResolver(appCfg.Judge.DataRoot)
	procRunner := runner.New()
	engine := judge.NewEngine(procRunner, checker.New(procRunner), packs, workRoot)

	judgeService := service.NewJudgeService(cfg, store, engine, standings, appCfg.Judge.Workers)
	userService := service.NewUserService(store)
	contestService := service.NewContestService(cfg, store, standings)

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	router := controller.NewRouter(judgeService, userService, contestService, stop)

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.BindPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge http server started", zap.String("addr", addr))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	if err := judgeService.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "judge worker shutdown failed", zap.Error(err))
	}
}

func openStore(cfg StorageConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return repository.NewMemoryStore(), nil
	case "mysql":
		return repository.NewMySQLStore(cfg.MySQL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
