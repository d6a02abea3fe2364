package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lessonlens",
		Short: "LessonLens - classroom transcript analysis pipeline",
		Long: `LessonLens ingests classroom audio transcripts and runs them through a
multi-stage LLM pipeline: transcript cleaning, lesson segmentation,
syllabus mapping, cognitive deep analysis, and report generation.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// A local .env is a convenience, not a requirement.
		_ = godotenv.Load()
		if *debugLogging {
			os.Setenv("LOG_LEVEL", "debug")
		}
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSubmitCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
