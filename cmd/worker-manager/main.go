// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studymatch-workers/internal/common/aws"
	"studymatch-workers/internal/common/config"
	"studymatch-workers/internal/common/database"
	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/common/observability"
	"studymatch-workers/internal/matching/finder"
	"studymatch-workers/internal/matching/scorer"
	"studymatch-workers/internal/matching/store"

	cs "studymatch-workers/internal/workers/matching/cleanup-snapshots"
	fm "studymatch-workers/internal/workers/matching/find-matches"
	mi "studymatch-workers/internal/workers/matching/mark-interaction"
	nm "studymatch-workers/internal/workers/matching/notify-matches"
	sg "studymatch-workers/internal/workers/matching/suggest-groups"
)

// retryWithBackoff retries an operation with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build the match engine ---
	weights := scorer.Weights{
		Subject:    cfg.Matching.Weights.Subject,
		Schedule:   cfg.Matching.Weights.Schedule,
		Experience: cfg.Matching.Weights.Experience,
		StudyStyle: cfg.Matching.Weights.StudyStyle,
		Goals:      cfg.Matching.Weights.Goals,
	}
	if err := weights.Validate(); err != nil {
		zapLog.Warn("configured factor weights are invalid, using defaults", zap.Error(err))
		weights = scorer.DefaultWeights()
	}

	storeCfg := store.DefaultConfig()
	if cfg.Matching.CacheTTLHours > 0 {
		storeCfg.SnapshotCacheTTL = time.Duration(cfg.Matching.CacheTTLHours) * time.Hour
	}
	matchStore := store.New(pg.DB, redis.Client, storeCfg, log)

	finderCfg := finder.Config{
		AlgorithmVersion: cfg.Matching.AlgorithmVersion,
		CacheWindow:      time.Duration(cfg.Matching.CacheTTLHours) * time.Hour,
		SnapshotTTL:      time.Duration(cfg.Matching.SnapshotTTLDays) * 24 * time.Hour,
	}
	matcher := finder.New(matchStore, matchStore, matchStore, scorer.New(weights), finderCfg, log)

	zapLog.Info("Match engine initialized",
		zap.String("algorithmVersion", finderCfg.AlgorithmVersion),
		zap.Float64("subjectWeight", weights.Subject),
	)

	// --- Register Workers ---

	if cfg.Workers[fm.TaskType].Enabled {
		handler := fm.NewHandler(
			&fm.Config{
				Timeout: time.Duration(cfg.Workers[fm.TaskType].Timeout) * time.Millisecond,
			},
			matcher, log,
		)
		startWorker(zeebeClient, fm.TaskType, cfg.Workers[fm.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[sg.TaskType].Enabled {
		handler := sg.NewHandler(
			&sg.Config{
				Timeout: time.Duration(cfg.Workers[sg.TaskType].Timeout) * time.Millisecond,
			},
			matcher, log,
		)
		startWorker(zeebeClient, sg.TaskType, cfg.Workers[sg.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[mi.TaskType].Enabled {
		handler := mi.NewHandler(
			&mi.Config{
				Timeout: time.Duration(cfg.Workers[mi.TaskType].Timeout) * time.Millisecond,
			},
			matcher, log,
		)
		startWorker(zeebeClient, mi.TaskType, cfg.Workers[mi.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[cs.TaskType].Enabled {
		handler := cs.NewHandler(
			&cs.Config{
				Timeout: time.Duration(cfg.Workers[cs.TaskType].Timeout) * time.Millisecond,
			},
			matcher, log,
		)
		startWorker(zeebeClient, cs.TaskType, cfg.Workers[cs.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[nm.TaskType].Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SES client", zap.Error(err))
		}
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}

		handler := nm.NewHandler(
			&nm.Config{
				Timeout:        time.Duration(cfg.Workers[nm.TaskType].Timeout) * time.Millisecond,
				FromEmail:      cfg.Notifications.Email.FromEmail,
				SnapshotWindow: finderCfg.SnapshotTTL,
			},
			matchStore, sesClient, snsClient, log,
		)
		startWorker(zeebeClient, nm.TaskType, cfg.Workers[nm.TaskType], handler.Handle, zapLog)
	}

	// --- Background snapshot sweeper ---
	if cfg.Matching.SweepIntervalMin > 0 {
		sweeper := store.NewSweeper(
			matchStore.DeleteExpiredSnapshots,
			time.Duration(cfg.Matching.SweepIntervalMin)*time.Minute,
			log,
		)
		go sweeper.Run(ctx)
		zapLog.Info("Snapshot sweeper started",
			zap.Int("intervalMinutes", cfg.Matching.SweepIntervalMin))
	}

	// --- Health/Metrics server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	cancelBackground()

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
