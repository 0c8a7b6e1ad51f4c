package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crosspost-labs/crosspost/pkg/prettylog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "crosspost",
	Short: "Multi-provider OAuth backend for cross-posting to social platforms",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		if os.Getenv("PRETTY_LOGS") != "false" {
			slog.SetDefault(slog.New(prettylog.NewHandler(os.Stderr, level)))
		} else {
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
