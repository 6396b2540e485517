package protocal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codex-gateway/configs"
	httpAdapter "codex-gateway/internal/adapters/input/http"
	codexAdapter "codex-gateway/internal/adapters/output/codex"
	lineAdapter "codex-gateway/internal/adapters/output/line"
	logAdapter "codex-gateway/internal/adapters/output/logger"
	"codex-gateway/internal/adapters/output/memory"
	"codex-gateway/internal/adapters/output/process"
	"codex-gateway/internal/application"
	"codex-gateway/internal/domain"

	swagger "github.com/arsmn/fiber-swagger/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const (
	sessionSweepInterval = 5 * time.Minute
	drainGraces          = 5
)

// Options struct - command line options of the serve command
type Options struct {
	Env        string
	ConfigPath string
}

// ServeHTTP func
func ServeHTTP(opts Options) error {
	configs.InitViper(opts.ConfigPath, opts.Env)
	cfg := configs.GetViper()
	setupLogger(cfg.App)
	logrus.WithField("env", cfg.App.Env).Info("Starting codex gateway")

	// Executions are cancelled through ctx once the server has drained
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := fiber.New(fiber.Config{
		AppName:               "codex-gateway",
		DisableStartupMessage: !cfg.App.Debug,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept,Authorization",
	}))

	// Wire up the hexagonal architecture layers
	// Output adapters (admission, codex command, process executor, result log)
	pool := memory.NewSlotPool(cfg.Admission.MaxParallel, cfg.Admission.QueueTimeout())
	builder := codexAdapter.NewCommandBuilder(codexAdapter.Config{
		Path:                   cfg.Codex.Path,
		Workdir:                cfg.Codex.Workdir,
		Home:                   cfg.Codex.Home,
		SandboxMode:            cfg.Codex.SandboxMode,
		ReasoningEffort:        cfg.Codex.ReasoningEffort,
		HideReasoning:          cfg.Codex.HideReasoning,
		WorkspaceNetworkAccess: cfg.Codex.WorkspaceNetworkAccess,
		JSONOutput:             cfg.Codex.JSONOutput,
	})
	if err := builder.Prepare(); err != nil {
		logrus.WithError(err).Warn("codex is not ready; requests will fail until it is installed")
	}
	executor := process.NewExecutor(
		process.WithLineLimit(cfg.Codex.LineLimitBytes),
		process.WithStderrLimit(cfg.Codex.StderrLimitBytes),
		process.WithKillGrace(cfg.Codex.KillGrace()),
	)
	recorder := logAdapter.NewResultLogger(logrus.StandardLogger())

	// Application services (use cases)
	completions := application.NewCompletionService(pool, builder, executor, recorder, cfg.Codex.ContentFields)
	models := application.NewModelResolver(cfg.Models.Default, cfg.Models.Available)
	planner := application.NewRequestPlanner(models, cfg.Codex.Timeout(), cfg.Codex.AllowDangerFullAccess)
	if cfg.Codex.LocalOnly {
		planner.RequireLocalProvider(builder)
	}

	// Input adapter (HTTP handler)
	hdl := httpAdapter.New(ctx, completions, models, planner, pool)

	app.Get("/swagger/*", swagger.HandlerDefault) // default
	app.Get("/health", hdl.HealthCheck)

	v1 := app.Group("/v1", httpAdapter.RateLimit(cfg.Auth.RateLimitPerMinute), httpAdapter.APIKeyAuth(cfg.Auth.APIKey))
	{
		v1.Get("/models", hdl.ListModels)
		v1.Post("/chat/completions", hdl.ChatCompletions)
		v1.Post("/responses", hdl.Responses)
	}

	if cfg.Line.Enabled {
		if err := wireLine(ctx, app, cfg, completions, models); err != nil {
			return err
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	stopping := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		sig := <-c
		close(stopping)
		logrus.WithField("signal", sig.String()).Info("Gracefull shut down ...")
		pool.Shutdown()
		if err := app.ShutdownWithTimeout(cfg.App.ShutdownTimeout()); err != nil {
			logrus.WithError(err).Error("Error when shutdown server")
		}
		cancel()

		// SIGTERM, grace, SIGKILL and the output drain each take at most one grace
		grace := cfg.Codex.KillGrace()
		if grace <= 0 {
			grace = process.DefaultKillGrace
		}
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainGraces*grace)
		defer cancelDrain()
		if err := completions.Drain(drainCtx); err != nil {
			logrus.WithField("active", completions.Active()).WithError(err).Error("Codex executions still running at exit")
		}
		close(stopped)
	}()

	logrus.Println("Listerning on port: ", cfg.App.Port)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		select {
		case <-stopping:
		default:
			return err
		}
	}
	<-stopped
	logrus.Info("Codex gateway stopped")
	return nil
}

// wireLine connects the LINE webhook to the completion service.
func wireLine(ctx context.Context, app *fiber.App, cfg *configs.Config, completions *application.CompletionService, models *application.ModelResolver) error {
	// Output adapters (LINE client, conversation sessions)
	lineClient, err := lineAdapter.NewLineClientAdapter(cfg.Line.ChannelToken, cfg.Line.Endpoint)
	if err != nil {
		return err
	}
	sessions := memory.NewMemorySessionStore(cfg.Session.SessionTimeout(), cfg.Session.MaxTurns)
	go sweepSessions(ctx, sessions)

	model, effort, err := models.ResolveModel("")
	if err != nil {
		return err
	}
	options := domain.ExecutionOptions{Model: model, ReasoningEffort: effort}

	// Application service (LINE webhook use case)
	lineWebhookSrv := application.NewLineWebhookService(lineClient, sessions, completions, options, cfg.Codex.Timeout())
	// Input adapter (LINE webhook handler)
	lineWebhookHdl := httpAdapter.NewLineWebhookHandler(ctx, lineWebhookSrv, cfg.Line.ChannelSecret)

	// LINE webhook endpoint
	webhook := app.Group("/webhook")
	{
		webhook.Post("/line", lineWebhookHdl.HandleWebhook)
	}
	logrus.Info("LINE webhook enabled at /webhook/line")
	return nil
}

func sweepSessions(ctx context.Context, sessions *memory.MemorySessionStore) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logrus.WithField("removed", n).Debug("Expired LINE sessions removed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func setupLogger(app configs.App) {
	if app.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	if app.Env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
