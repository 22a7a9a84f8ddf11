// Package app wires every collaborator of the background-job subsystem
// together into one long-lived process: storage (in-memory by default, or
// SurrealDB when configured), the queue/dispatcher/processor pipeline, the
// health aggregator and retention cleaner, the webhook handler, the LLM
// planner/executor, the platform and container adapters, and the Prometheus
// metrics exporter. Grounded on the teacher's NewApp (internal/app/app.go):
// same load-config -> init-logger -> init-storage -> wire-services ->
// return-App shape, reduced to this system's collaborator graph.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/audit"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/container"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dedup"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dispatcher"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/events"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/health"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/jobstatus"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/llm"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/metrics"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/platform"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/processor"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/queue"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/retention"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/retry"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/storage/redisdedup"
	surrealstore "github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/storage/surrealdb"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/taskstore"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/webhook"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// App holds every initialized collaborator of the background-job subsystem.
// It is the shared core used by cmd/copilot-worker.
type App struct {
	Config *common.Config
	Logger *common.Logger

	AuditLog   interfaces.AuditLog
	TaskStore  interfaces.TaskStore
	Statuses   interfaces.JobStatusStore
	Dedup      interfaces.DeduplicationRegistry
	Queue      interfaces.JobQueue
	Dispatcher *dispatcher.Dispatcher
	Processor  *processor.Processor
	Events     *events.Hub
	Health     *health.Aggregator
	Retention  *retention.Cleaner
	Webhook    *webhook.Handler

	Platform  interfaces.PlatformClient
	Container *container.Client
	Metrics   *metrics.Exporter

	surrealManager *surrealstore.Manager
	StartupTime    time.Time

	retentionStop chan struct{}
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes all collaborators. configPath may be empty, in which
// case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("COPILOT_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "copilot-worker.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/copilot-worker.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)
	clock := common.NewSystemClock()
	ctx := context.Background()

	a := &App{Config: config, Logger: logger, StartupTime: startupStart}

	if err := a.wireStorage(ctx, config, logger, clock); err != nil {
		return nil, err
	}

	a.Queue = queue.New(config.BackgroundJob.GetMaxQueueSize(), config.BackgroundJob.EnablePrioritization)
	a.Dispatcher = dispatcher.New(a.Queue, a.Dedup, a.Statuses, clock, logger)

	a.Events = events.NewHub(logger)

	a.Processor = processor.New(a.Dispatcher, a.AuditLog, clock, logger, processor.Config{
		MaxConcurrency: config.BackgroundJob.GetMaxConcurrency(),
		DrainTimeout:   config.BackgroundJob.GetDrainTimeout(),
		RetryPolicy: retry.Policy{
			Enabled:         config.BackgroundJob.RetryPolicy.Enabled,
			MaxRetries:      config.BackgroundJob.RetryPolicy.MaxRetries,
			BaseDelayMs:     config.BackgroundJob.RetryPolicy.BaseDelayMilliseconds,
			MaxDelayMs:      config.BackgroundJob.RetryPolicy.MaxDelayMilliseconds,
			BackoffStrategy: retry.BackoffStrategy(config.BackgroundJob.RetryPolicy.BackoffStrategy),
			MinJitterFactor: config.BackgroundJob.RetryPolicy.MinJitterFactor,
			MaxJitterFactor: config.BackgroundJob.RetryPolicy.MaxJitterFactor,
		},
		TimeoutFor: func(jobType string) time.Duration {
			switch jobType {
			case "GeneratePlan":
				return config.BackgroundJob.PlanTimeout()
			case "ExecutePlan":
				return config.BackgroundJob.ExecutionTimeout()
			default:
				return 0
			}
		},
		Sink: a.Events,
	})

	a.Health = health.New(a.Queue, a.Statuses, clock)
	a.Retention = retention.New(a.AuditLog, clock, logger, config.AuditLog.GetRetention())
	a.Metrics = metrics.NewExporter(a.Health)

	platformRate, platformBurst := config.Platform.GetRateLimit()
	a.Platform = platform.NewStubClient(platform.WithRateLimiter(rate.NewLimiter(rate.Limit(platformRate), platformBurst)))
	a.Container = container.NewClient(logger)

	if err := a.wireLLMHandlers(ctx, config, logger, clock); err != nil {
		return nil, err
	}

	webhookRate, webhookBurst := config.BackgroundJob.GetWebhookRateLimit()
	a.Webhook = webhook.New(a.TaskStore, a.Dispatcher, a.AuditLog, clock,
		webhook.WithRateLimiter(rate.NewLimiter(rate.Limit(webhookRate), webhookBurst)),
	)

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("app initialized")
	return a, nil
}

// wireStorage selects the in-memory or SurrealDB-backed persistence
// collaborators, and the in-memory or Redis-backed dedup registry,
// depending on config.
func (a *App) wireStorage(ctx context.Context, config *common.Config, logger *common.Logger, clock common.Clock) error {
	if config.Storage.Enabled() {
		mgr, err := surrealstore.Connect(&config.Storage, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		a.surrealManager = mgr
		a.AuditLog = mgr.AuditLog()
		a.TaskStore = mgr.TaskStore()
		a.Statuses = mgr.JobStatusStore()
	} else {
		a.AuditLog = audit.NewLog(logger, clock)
		a.TaskStore = taskstore.NewStore()
		a.Statuses = jobstatus.NewStore()
	}

	if addr := os.Getenv("COPILOT_REDIS_ADDR"); addr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Str("error", err.Error()).Msg("redis dedup registry unreachable, falling back to in-memory")
			a.Dedup = dedup.NewRegistry()
		} else {
			a.Dedup = redisdedup.NewRegistry(client, redisdedup.WithLogger(logger))
		}
	} else {
		a.Dedup = dedup.NewRegistry()
	}
	return nil
}

// wireLLMHandlers constructs the GeminiProvider (if a planner API key is
// configured) and registers the GeneratePlan/ExecutePlan job handlers.
func (a *App) wireLLMHandlers(ctx context.Context, config *common.Config, logger *common.Logger, clock common.Clock) error {
	if config.Planner.ApiKey == "" {
		logger.Warn().Msg("no planner api key configured, LLM job handlers not registered")
		return nil
	}

	provider, err := llm.NewGeminiProvider(ctx, config.Planner.ApiKey,
		llm.WithModel(config.Planner.ModelId),
		llm.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize gemini provider: %w", err)
	}

	genHandler := llm.NewGeneratePlanJobHandler(provider, a.TaskStore, a.Dispatcher, a.AuditLog, clock)
	execHandler := llm.NewExecutePlanJobHandler(provider, a.TaskStore, a.AuditLog, clock)
	a.Dispatcher.RegisterHandler(genHandler)
	a.Dispatcher.RegisterHandler(execHandler)
	return nil
}

// Start launches the processor's worker pool, the event hub's broadcast
// loop, and the periodic audit-log retention sweep.
func (a *App) Start(ctx context.Context) {
	a.Processor.Start(ctx)
	go a.Events.Run()

	stop := make(chan struct{})
	a.retentionStop = stop
	go a.runRetentionLoop(ctx, stop)
}

// runRetentionLoop is the scheduler spec §4.10 calls for: an external caller
// would otherwise have to invoke RetentionCleaner.CleanupAsync itself, so the
// app ticks it on a fixed interval until ctx is cancelled or stop is closed.
func (a *App) runRetentionLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(a.Config.AuditLog.GetCleanupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			// CleanupAsync logs its own success/failure; nothing more to do here.
			_, _ = a.Retention.CleanupAsync(ctx)
		}
	}
}

// Close performs an orderly shutdown: stop accepting new work, drain
// in-flight jobs, stop the retention loop and the event hub, close storage.
func (a *App) Close() {
	if a.Processor != nil {
		a.Processor.StopAsync()
	}
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.retentionStop != nil {
		select {
		case <-a.retentionStop:
		default:
			close(a.retentionStop)
		}
		a.retentionStop = nil
	}
	if a.Events != nil {
		a.Events.Stop()
	}
	if a.surrealManager != nil {
		_ = a.surrealManager.Close()
		a.surrealManager = nil
	}
}
