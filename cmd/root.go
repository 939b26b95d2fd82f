package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reelforge",
	Short: "AI video generation pipeline",
	Long: `reelforge turns a prompt and an uploaded piece of media into a
generated video through a transcription, scene planning, rendering and
finalization pipeline. The serve command exposes the HTTP API, the worker
command runs the pipeline, and the poll command follows a job from the
command line.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
