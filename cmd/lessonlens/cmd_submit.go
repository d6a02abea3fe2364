package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kedge-tech/lessonlens/internal/config"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/queue"
	"github.com/kedge-tech/lessonlens/internal/stages"
)

func newSubmitCommand() *cobra.Command {
	var configPath string
	var deepAnalyze []string

	cmd := &cobra.Command{
		Use:   "submit <transcript-file>",
		Short: "Run the pipeline locally on a .txt or .json transcript",
		Long: `Submit runs the full pipeline end-to-end in this process, without the
HTTP server. A .txt file is treated as a raw timestamped transcript; a
.json file as an already-cleaned sentence array.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return submit(cmd.Context(), cfg, args[0], deepAnalyze)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a lessonlens.yaml config file")
	cmd.Flags().StringSliceVar(&deepAnalyze, "deep-analyze", nil,
		"Deep-analyze items to run (default: all)")
	return cmd
}

func submit(ctx context.Context, cfg config.Settings, path string, deepAnalyze []string) error {
	log := logger.New()

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript file: %w", err)
	}

	var taskID string
	var taskType queue.Type
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		taskType = queue.TypeText
		taskID, err = app.orchestrator.SubmitText(ctx, string(content), deepAnalyze)
	case ".json":
		var transcript []models.Sentence
		if err := json.Unmarshal(content, &transcript); err != nil {
			return fmt.Errorf("parse transcript file: %w", err)
		}
		taskType = queue.TypeJSON
		taskID, err = app.orchestrator.SubmitTranscript(ctx, transcript, deepAnalyze)
	default:
		return fmt.Errorf("unsupported transcript extension %q (want .txt or .json)", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	fmt.Printf("task %s submitted, running pipeline\n", taskID)
	if err := app.orchestrator.RunTask(ctx, queue.Task{ID: taskID, Type: taskType}); err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	dir, err := app.store.TaskDir(taskID)
	if err != nil {
		return err
	}
	fmt.Printf("done: %s\n", filepath.Join(dir, stages.FileReport))
	return nil
}
