package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

var (
	settings  *config.Settings
	local     config.Local
	localPath string
)

var rootCmd = &cobra.Command{
	Use:   "doc-translator",
	Short: "Batch document translation through LLM providers",
	Long: `doc-translator extracts translatable text units from documents,
sends them through a rate-limited, retried, glossary-constrained batch
pipeline to an LLM backend, and writes translated copies.

Use "doc-translator translate --help" for one-shot translation options,
or "doc-translator serve" to run the web API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; the environment always wins.
		_ = godotenv.Load()

		var err error
		local, err = config.LoadLocal(localPath)
		if err != nil {
			return err
		}
		settings = config.NewFromEnv()
		local.Apply(settings)

		log.InitLogger(log.ParseLevel(settings.LogLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&localPath, "config", "", "local config file (default local.config.json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
