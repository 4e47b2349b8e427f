package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/gnb-cu-cp/internal/config"
	"github.com/your-org/gnb-cu-cp/internal/connectionapi"
	"github.com/your-org/gnb-cu-cp/internal/coordinator"
	"github.com/your-org/gnb-cu-cp/internal/handlers"
	"github.com/your-org/gnb-cu-cp/internal/metrics"
	"github.com/your-org/gnb-cu-cp/internal/ngap"
	"github.com/your-org/gnb-cu-cp/internal/plmn"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/transport"
	"github.com/your-org/gnb-cu-cp/internal/uestore"
	"github.com/your-org/gnb-cu-cp/internal/worker"
	"github.com/your-org/gnb-cu-cp/internal/workflows"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config/gnbcucp.yaml", "path to configuration file")
	flag.Parse()

	logger := createLogger("info")
	defer logger.Sync()

	logger.Info("starting gNB-CU-CP", zap.String("version", Version), zap.String("build_time", BuildTime))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.String("worker_name", cfg.WorkerName),
		zap.String("f1_bind_address", cfg.F1BindAddress),
		zap.String("e1_bind_address", cfg.E1BindAddress),
		zap.String("connection_style", string(cfg.ConnectionStyle.Kind)),
	)

	store, err := newUEStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to construct ue store", zap.Error(err))
	}

	var coord coordinator.Client
	if cfg.ConnectionStyle.Kind == config.ConnectionStyleCoordinated {
		coord = coordinator.NewHTTPClient(cfg.ConnectionStyle.Coordinated.CoordinatorBaseURL, logger)
	} else {
		coord = coordinator.NewAutonomousCoordinator(logger)
	}

	w := worker.New(cfg, transport.NewSCTPTransport(), stack.JSONCodec{}, store, coord, logger)
	workerLogger := logger.With(zap.String("worker_id", w.WorkerID().String()))
	w.SetHandlers(
		handlers.NGAP(w, workerLogger),
		handlers.F1AP(w, cfg.WorkerName, workerLogger),
		handlers.E1AP(workerLogger),
	)

	metricsServer := metrics.NewServer(cfg.Observability.Metrics.Port, logger)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	defer metricsServer.Stop(context.Background())

	var connAPI *connectionapi.Server
	if cfg.ConnectionStyle.Kind == config.ConnectionStyleCoordinated {
		connAPI = connectionapi.NewServer(w, logger)
		go func() {
			addr := cfg.ConnectionStyle.Coordinated.ConnectionAPIAddress
			logger.Info("starting connection api server", zap.String("address", addr))
			if err := connAPI.Start(addr); err != nil {
				logger.Error("connection api server error", zap.Error(err))
			}
		}()
	}

	ctx := context.Background()
	if err := w.StartListening(ctx); err != nil {
		logger.Fatal("failed to start F1/E1 listeners", zap.Error(err))
	}

	go w.RunPeriodicRefresh()

	if cfg.AMFAddress != "" {
		go connectToAMF(ctx, w, cfg, workerLogger)
	}

	logger.Info("gNB-CU-CP started successfully", zap.String("worker_id", w.WorkerID().String()))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if connAPI != nil {
		if err := connAPI.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop connection api server", zap.Error(err))
		}
	}
	if err := w.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to gracefully shut down worker", zap.Error(err))
	}

	logger.Info("gNB-CU-CP shutdown complete")
}

// connectToAMF performs the startup NG Setup for deployments that name a
// fixed AMF address rather than waiting on the Connection API's
// connect-amf operation.
func connectToAMF(ctx context.Context, w *worker.Worker, cfg *config.Config, logger *zap.Logger) {
	plmnOctets, err := plmn.Encode(cfg.PLMN.MCC, cfg.PLMN.MNC)
	if err != nil {
		logger.Error("startup ng setup: invalid plmn configuration", zap.Error(err))
		return
	}

	globalRANNodeID := ngap.GlobalRANNodeID{
		PLMN:  ngap.PLMNID(plmnOctets),
		GNBID: cfg.GNBID,
	}
	supportedTAList := []ngap.SupportedTAItem{
		{
			TAC:  [3]byte{0, 0, 1},
			PLMN: ngap.PLMNID(plmnOctets),
		},
	}

	if err := workflows.NgSetup(ctx, w, cfg.AMFAddress, globalRANNodeID, cfg.WorkerName, supportedTAList, logger); err != nil {
		logger.Error("startup ng setup failed", zap.Error(err))
	}
}

func newUEStore(cfg *config.Config, logger *zap.Logger) (uestore.Store, error) {
	sweepInterval := time.Duration(cfg.UEStore.SweepSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}

	switch cfg.UEStore.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.UEStore.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return uestore.NewRedisStore(redis.NewClient(opts)), nil
	default:
		return uestore.NewMemoryStore(sweepInterval, logger), nil
	}
}

func createLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return logger
}
