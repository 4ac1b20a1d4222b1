package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"uxforge/internal/audit"
	"uxforge/internal/http/handlers"
	httpapi "uxforge/internal/http/httpapi"
	"uxforge/internal/infra"
	"uxforge/internal/jobs"
	"uxforge/internal/materialize"
	"uxforge/internal/pipeline"
	"uxforge/internal/providers/axe"
	"uxforge/internal/providers/browser"
	"uxforge/internal/providers/devserver"
	"uxforge/internal/providers/llm"
	"uxforge/internal/providers/pagespeed"
	"uxforge/internal/runner"
	"uxforge/internal/storage"
	"uxforge/internal/synthesis"
	"uxforge/internal/urlguard"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()
	svc, err := newJobService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire job service")
	}

	app := handlers.NewApp(svc, logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("llm_provider", cfg.LLMProvider).
			Str("backend", cfg.MaterializeBackend).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := svc.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("background jobs still running at exit")
	}
	logger.Info().Msg("server stopped")
}

func newJobService(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*jobs.Service, error) {
	store, err := storage.NewFileStore(cfg.RuntimeDir)
	if err != nil {
		return nil, err
	}

	validator := urlguard.New(net.DefaultResolver)
	renderer := browser.NewRenderer(browser.Options{
		ExecPath:          cfg.ChromePath,
		Headless:          true,
		NoSandbox:         cfg.ChromeNoSandbox,
		NavigationTimeout: cfg.RenderTimeout,
		LaunchTimeout:     cfg.RenderTimeout,
		CaptureTimeout:    cfg.RenderTimeout,
		Scanner:           axe.NewLoader(axe.Options{ScriptURL: cfg.AxeScriptURL}),
		Logger:            logger,
	})
	scorer := pagespeed.NewClient(pagespeed.Options{APIKey: cfg.PageSpeedAPIKey})
	auditor := audit.NewOrchestrator(validator, renderer, scorer, logger)

	synth, agent, err := llm.New(ctx, llm.Config{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		OpenAIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		AnthropicKey:  cfg.AnthropicAPIKey,
		AWSRegion:     cfg.AWSRegion,
		AWSProfile:    cfg.AWSProfile,
		MaxIterations: cfg.AgentMaxIter,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	criteria, err := synthesis.LoadCriteria(cfg.StyleCriteriaPath)
	if err != nil {
		return nil, err
	}
	synthesizer := synthesis.NewOrchestrator(synth, synthesis.Options{
		Criteria: criteria,
		Logger:   logger,
	})

	mat, err := newMaterializer(cfg, agent, logger)
	if err != nil {
		return nil, err
	}
	generator, err := pipeline.New(pipeline.Options{
		Synthesizer:      synthesizer,
		Materializer:     mat,
		SynthesisTimeout: cfg.SynthesisTimeout,
		BuildTimeout:     cfg.BuildTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	return jobs.NewService(jobs.Options{
		Registry:  jobs.NewRegistry(logger),
		Auditor:   auditor,
		Generator: generator,
		Checker:   validator,
		WorkDirs:  store,
		Spawner:   jobs.GoSpawner,
		Logger:    logger,
	})
}

func newMaterializer(cfg *infra.Config, agent materialize.Agent, logger infra.Logger) (materialize.Materializer, error) {
	switch cfg.MaterializeBackend {
	case infra.BackendLocal:
		opts := materialize.LocalOptions{
			Runner:     runner.NewRunner(),
			Verify:     cfg.LocalBuildVerify,
			StyleGuide: synthesis.StyleGuide,
			Logger:     logger,
		}
		if cfg.LocalAgent {
			opts.Agent = agent
		}
		return materialize.NewLocal(opts), nil
	case infra.BackendRemote:
		client, err := devserver.NewClient(devserver.Options{
			APIKey:  cfg.DevServerAPIKey,
			BaseURL: cfg.DevServerBaseURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return materialize.NewRemote(materialize.RemoteOptions{
			DevServer:    client,
			Agent:        agent,
			RepoID:       cfg.DevServerRepoID,
			TemplateRepo: cfg.DevServerTemplateRepo,
			StyleGuide:   synthesis.StyleGuide,
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("unknown materialize backend %q", cfg.MaterializeBackend)
	}
}
