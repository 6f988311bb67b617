package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/job"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

var (
	sourceLang   string
	targetLang   string
	domain       string
	glossaryPath string
	outputDir    string
	outputSuffix string
	reportFile   string

	batchSize    int
	maxRetries   int
	rateLimitRPM int
	concurrency  int

	providerKind string
	model        string
	baseURL      string
	endpoint     string

	forceRun bool

	compare           bool
	compareModels     []string
	compareSampleSize int
	compareReportFile string
)

var translateCmd = &cobra.Command{
	Use:   "translate [files...]",
	Short: "Translate documents in one run",
	Long: `Translate one or more documents and write the results next to a
JSON report. The run acquires a lock on the output directory; a second
run against the same directory fails unless --force-run is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Job{
			Inputs:       args,
			SourceLang:   sourceLang,
			TargetLang:   targetLang,
			Domain:       domain,
			GlossaryPath: glossaryPath,
			OutputDir:    outputDir,
			OutputSuffix: outputSuffix,
			ReportFile:   reportFile,
			BatchSize:    batchSize,
			MaxRetries:   &maxRetries,
			RateLimitRPM: rateLimitRPM,
			Concurrency:  concurrency,
			Provider:     providerKind,
			Model:        model,
			BaseURL:      baseURL,
			Endpoint:     endpoint,
			ForceRun:     forceRun,
			Compare: config.Compare{
				Enabled:    compare,
				Models:     compareModels,
				SampleSize: compareSampleSize,
				ReportFile: compareReportFile,
			},
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := &job.Runner{Settings: settings, Local: local}
		status, err := runner.Run(ctx, &job.Job{Config: cfg})
		if err != nil {
			return err
		}

		log.Info("Run finished: %s", status)
		switch status {
		case job.StatusPartial:
			return fmt.Errorf("run completed with failures; see %s", cfg.ReportFile)
		case job.StatusCancelled:
			return fmt.Errorf("run cancelled")
		}
		return nil
	},
}

func init() {
	flags := translateCmd.Flags()
	flags.StringVar(&sourceLang, "source", config.AutoSourceLang, "source language (auto to detect)")
	flags.StringVar(&targetLang, "target", "", "target language (required)")
	flags.StringVar(&domain, "domain", "", "domain hint passed to the provider prompt")
	flags.StringVar(&glossaryPath, "glossary", "", "glossary file (CSV or JSON)")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory (required)")
	flags.StringVar(&outputSuffix, "suffix", config.DefaultOutputSuffix, "suffix spliced into output file names")
	flags.StringVar(&reportFile, "report", config.DefaultReportFile, "report file name inside the output directory")

	flags.IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "units per provider call")
	flags.IntVar(&maxRetries, "max-retries", config.DefaultMaxRetries, "retries per batch after the first attempt")
	flags.IntVar(&rateLimitRPM, "rpm", config.DefaultRateLimitRPM, "provider requests per minute")
	flags.IntVar(&concurrency, "concurrency", 0, "concurrent batches (default rpm/10)")

	flags.StringVar(&providerKind, "provider", "", "provider kind: openai or compatible")
	flags.StringVar(&model, "model", "", "model override")
	flags.StringVar(&baseURL, "base-url", "", "provider base URL override")
	flags.StringVar(&endpoint, "endpoint", "", "provider endpoint override")

	flags.BoolVar(&forceRun, "force-run", false, "take over a locked output directory")

	flags.BoolVar(&compare, "compare", false, "rank candidate models on a sample before the run")
	flags.StringSliceVar(&compareModels, "compare-models", nil, "candidate models for --compare")
	flags.IntVar(&compareSampleSize, "compare-sample", config.DefaultSampleSize, "sample size for --compare")
	flags.StringVar(&compareReportFile, "compare-report", config.DefaultCompareReport, "comparison report file name")

	_ = translateCmd.MarkFlagRequired("target")
	_ = translateCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(translateCmd)
}
