package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/logging"
	"github.com/ezenkico/deploy-commander/stack-reconciler/metrics"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services/descriptor"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services/endpoints"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services/podman"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services/reconcile"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services/swarm"
)

const defaultConfigPath = "/run/config.json"

func loadConfiguration(path string) (models.Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return models.Configuration{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	var cfg models.Configuration
	if err := json.Unmarshal(b, &cfg); err != nil {
		return models.Configuration{}, fmt.Errorf("parse config json %q: %w", path, err)
	}

	cfg.ApplyDefaults()
	if stack := strings.TrimSpace(os.Getenv("STACK_NAME")); stack != "" {
		cfg.Stack = stack
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return models.Configuration{}, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

func selectBackend(cfg models.Configuration, log zerolog.Logger) (backends.Backend, error) {
	switch cfg.Backend {
	case models.BackendSwarm:
		return swarm.New(swarm.Options{
			Host:            cfg.BackendEndpoint,
			PullRetryWindow: cfg.PullRetryWindow.Std(),
			Logger:          logging.Component(log, "swarm"),
		})
	case models.BackendPodman:
		conn, err := podman.NewConnectionFromEnv(cfg.BackendEndpoint)
		if err != nil {
			return nil, err
		}
		return podman.New(conn, podman.Options{
			PullRetryWindow: cfg.PullRetryWindow.Std(),
			Logger:          logging.Component(log, "podman"),
		})
	default:
		return nil, fmt.Errorf("%q is not a valid backend", cfg.Backend)
	}
}

func run(ctx context.Context, cfg models.Configuration, log zerolog.Logger) error {
	backend, err := selectBackend(cfg, log)
	if err != nil {
		return err
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close()
	}

	if err := backend.Initialise(ctx); err != nil {
		return fmt.Errorf("initialise %s backend: %w", backend.Name(), err)
	}

	m := metrics.New(cfg.Metrics)
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, logging.Component(log, "metrics")); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	r := reconcile.NewReconciler(backend, reconcile.Options{
		SecretsDir:      cfg.SecretsDir,
		ConfigsDir:      cfg.ConfigsDir,
		StartupTimeout:  cfg.StartupTimeout.Std(),
		PollInterval:    cfg.PollInterval.Std(),
		MaxPollInterval: cfg.MaxPollInterval.Std(),
		Validator:       descriptor.NewValidator(descriptor.Options{SkipBindSourceCheck: cfg.SkipBindSourceCheck}),
		Publisher:       endpoints.NewPublisher(backend, cfg.ConfigsDir, logging.Component(log, "endpoints")),
		Recorder:        m,
		Logger:          logging.Component(log, "reconciler"),
	})

	if cfg.Teardown {
		_, err := r.Teardown(ctx, cfg.Stack)
		return err
	}

	descriptors, err := descriptor.LoadDir(cfg.ServicesDir, cfg.Services)
	if err != nil {
		return err
	}
	ordered, err := descriptor.Order(descriptors)
	if err != nil {
		return err
	}

	for _, d := range ordered {
		handle, err := r.Reconcile(ctx, cfg.Stack, d)
		if err != nil {
			return err
		}
		log.Info().
			Str("service", d.Name).
			Str("container", handle.ContainerID).
			Str("state", string(handle.State)).
			Bool("exited", handle.Exited).
			Msg("service reconciled")
	}
	return nil
}

func main() {
	os.Exit(runMain())
}

// runMain returns the process exit code so deferred cleanup runs before exit.
func runMain() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := os.Getenv("RECONCILER_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := loadConfiguration(path)
	if err != nil {
		log.Print(err)
		return 1
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer closer.Close()
	logger = logger.With().Str("stack", cfg.Stack).Str("backend", cfg.Backend).Logger()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("reconcile failed")
		return 1
	}
	return 0
}
