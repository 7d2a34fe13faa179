package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/limaronaldo/orc-task/internal/batchcoalesce"
	"github.com/limaronaldo/orc-task/internal/batchticker"
	"github.com/limaronaldo/orc-task/internal/config"
	"github.com/limaronaldo/orc-task/internal/dbdriver"
	"github.com/limaronaldo/orc-task/internal/hosting"
	_ "github.com/limaronaldo/orc-task/internal/hosting/github"
	_ "github.com/limaronaldo/orc-task/internal/hosting/gitlab"
	"github.com/limaronaldo/orc-task/internal/httpapi"
	"github.com/limaronaldo/orc-task/internal/ingress"
	"github.com/limaronaldo/orc-task/internal/jobrunner"
	"github.com/limaronaldo/orc-task/internal/llmclient"
	"github.com/limaronaldo/orc-task/internal/modelselect"
	"github.com/limaronaldo/orc-task/internal/stagehandler"
	"github.com/limaronaldo/orc-task/internal/taskdriver"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// app bundles every long-lived collaborator the serve command (and any
// future command that drives tasks directly) needs.
type app struct {
	cfg     config.Config
	store   *taskstore.SQLStore
	driver  *taskdriver.Driver
	runner  *jobrunner.Runner
	ingress *ingress.Ingress
	ticker  *batchticker.Ticker
	server  *httpapi.Server
	logger  *slog.Logger
}

// buildApp wires every component from C1-C13 into a runnable server,
// following the reference's own serve command's pattern of loading config
// once and constructing every collaborator from it.
func buildApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	tc, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := tc.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dialect, dsn, err := splitStoreDSN(cfg.StoreDSN)
	if err != nil {
		return nil, err
	}
	store, err := taskstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	llm := llmclient.NewAnthropicClient(os.Getenv("ANTHROPIC_API_KEY"))

	cache := modelselect.NewCache(modelselect.NewStoreLoader(store.ListModelConfigs), modelConfigTTL(cfg))
	selector := modelselect.New(cache)

	registry := stagehandler.NewRegistry(
		stagehandler.NewPlannerHandler(llm),
		stagehandler.NewCoderHandler(llm),
		stagehandler.NewReviewerHandler(llm),
		stagehandler.NewFixerHandler(llm),
	)

	hostingCfg := hosting.Config{Provider: os.Getenv("ORCTASK_HOSTING_PROVIDER"), BaseURL: os.Getenv("ORCTASK_HOSTING_BASE_URL")}
	providerFor := hosting.NewProviderFactory(hostingCfg)
	collaborator := hosting.NewCollaborator(providerFor, cfg.AutoDevLabel)
	testRunner := hosting.NewCheckRunTestRunner(providerFor, 0, 0)

	pathPolicy := config.NewPathPolicy(cfg)

	driver := taskdriver.New(store, registry, selector, testRunner, collaborator,
		taskdriver.WithLogger(logger),
		taskdriver.WithPathValidator(pathPolicy),
	)

	coalescer := batchcoalesce.New(store)

	runner := jobrunner.New(store, driver,
		jobrunner.WithMaxParallel(maxParallelOrDefault(cfg.MaxParallel)),
		jobrunner.WithCoalescer(coalescer),
		jobrunner.WithLogger(logger),
	)

	ing := ingress.New(store, cfg.AllowedRepos, cfg.AutoDevLabel, cfg.BatchLabel, ingress.WithLogger(logger))

	ticker := batchticker.New(batchticker.Config{
		Store:     store,
		Coalescer: coalescer,
		Interval:  time.Duration(cfg.BatchTimeoutMinutes) * time.Minute / 4,
		Logger:    logger,
	})

	server := httpapi.New(httpapi.Config{
		Store:   store,
		Driver:  driver,
		Runner:  runner,
		Ingress: ing,
		Logger:  logger,
	})

	return &app{
		cfg: cfg, store: store, driver: driver, runner: runner,
		ingress: ing, ticker: ticker, server: server, logger: logger,
	}, nil
}

// splitStoreDSN splits a "dialect://rest" DSN into a dbdriver.Dialect and
// the driver-native connection string.
func splitStoreDSN(dsn string) (dbdriver.Dialect, string, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", "", fmt.Errorf("store_dsn %q: expected a scheme:// prefix", dsn)
	}
	dialect, err := dbdriver.ParseDialect(scheme)
	if err != nil {
		return "", "", fmt.Errorf("store_dsn %q: %w", dsn, err)
	}
	return dialect, rest, nil
}

func modelConfigTTL(cfg config.Config) time.Duration {
	if cfg.ModelConfigTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.ModelConfigTTLSeconds) * time.Second
}

func maxParallelOrDefault(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
