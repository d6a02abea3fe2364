package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kedge-tech/lessonlens/internal/config"
	"github.com/kedge-tech/lessonlens/internal/llm"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/orchestrator"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/queue"
	"github.com/kedge-tech/lessonlens/internal/stages"
	"github.com/kedge-tech/lessonlens/internal/store"
	"github.com/kedge-tech/lessonlens/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var configPath string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the pipeline worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Port = port
			}

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a lessonlens.yaml config file")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg config.Settings) error {
	log := logger.New()

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	srv, err := webserver.New(webserver.Config{
		Port:         cfg.Port,
		Orchestrator: app.orchestrator,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	// Worker and HTTP server live and die together.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := app.queue.Run(ctx, func(ctx context.Context, task queue.Task) error {
			return app.orchestrator.RunTask(ctx, task)
		})
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	return g.Wait()
}

// app bundles the composed pipeline components.
type app struct {
	store        *store.Store
	queue        *queue.Queue
	orchestrator *orchestrator.Orchestrator
}

func buildApp(cfg config.Settings, log *logger.Logger) (*app, error) {
	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewGatewayClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.Model)
	if err != nil {
		return nil, err
	}
	reg := stages.BuildRegistry(st, client, log, cfg)
	runner := pipeline.NewRunner(st, reg, log)
	q := queue.New(64, log)

	return &app{
		store:        st,
		queue:        q,
		orchestrator: orchestrator.New(st, q, runner, log),
	}, nil
}
