package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"askace/internal/ace"
	"askace/internal/config"
	"askace/internal/logging"
	"askace/internal/pipeline"
	"askace/internal/store"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "askace",
	Short: "askace - cited answers about AI/ML developments that learn from every run",
	Long: `askace plans searches across niche AI/ML sources, reads and ranks the evidence,
and answers with citation-tagged bullets. Every run is critiqued and the lessons
are stored as playbook heuristics that steer future searches.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return initLogger(cfg.Logging)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "askace.yaml", "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(playbookCmd)
	rootCmd.AddCommand(evalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger installs the zap backend; --verbose forces debug.
func initLogger(lc logging.Config) error {
	if verbose {
		lc.Level = "debug"
	}
	return logging.Initialize(lc)
}
