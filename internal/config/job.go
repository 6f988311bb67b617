package config

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/provider"
)

// Default knobs applied when a job leaves them unset.
const (
	DefaultBatchSize     = 20
	DefaultMaxRetries    = 3
	DefaultRateLimitRPM  = 60
	DefaultSampleSize    = 80
	DefaultOutputSuffix  = ".translated"
	DefaultReportFile    = "report.json"
	DefaultCompareReport = "compare_report.json"
)

// Job is the full configuration of one translation run.
type Job struct {
	Inputs     []string `json:"inputs"`
	SourceLang string   `json:"source_lang"`
	TargetLang string   `json:"target_lang"`
	Domain     string   `json:"domain,omitempty"`

	GlossaryPath string `json:"glossary_path,omitempty"`
	OutputDir    string `json:"output_dir"`
	OutputSuffix string `json:"output_suffix"`
	ReportFile   string `json:"report_file"`

	BatchSize int `json:"batch_size"`
	// MaxRetries is a pointer so an omitted field (nil) gets the
	// default while an explicit zero disables retries.
	MaxRetries   *int `json:"max_retries,omitempty"`
	RateLimitRPM int  `json:"rate_limit_rpm"`
	Concurrency  int  `json:"concurrency,omitempty"`

	// Provider overrides; anything left empty falls back to the
	// environment-derived defaults.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	APIKey   string `json:"-"`

	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`

	ForceRun bool    `json:"force_run,omitempty"`
	Compare  Compare `json:"compare,omitempty"`
}

// Compare configures the optional pre-run provider comparison.
type Compare struct {
	Enabled    bool     `json:"enabled"`
	Models     []string `json:"models,omitempty"`
	SampleSize int      `json:"sample_size,omitempty"`
	ReportFile string   `json:"report_file,omitempty"`
}

// ApplyDefaults fills unset knobs in place.
func (j *Job) ApplyDefaults() {
	if j.BatchSize <= 0 {
		j.BatchSize = DefaultBatchSize
	}
	if j.MaxRetries == nil || *j.MaxRetries < 0 {
		retries := DefaultMaxRetries
		j.MaxRetries = &retries
	}
	if j.RateLimitRPM <= 0 {
		j.RateLimitRPM = DefaultRateLimitRPM
	}
	if j.OutputSuffix == "" {
		j.OutputSuffix = DefaultOutputSuffix
	}
	if j.ReportFile == "" {
		j.ReportFile = DefaultReportFile
	}
	if j.Compare.Enabled {
		if j.Compare.SampleSize <= 0 {
			j.Compare.SampleSize = DefaultSampleSize
		}
		if j.Compare.ReportFile == "" {
			j.Compare.ReportFile = DefaultCompareReport
		}
	}
}

// RetryBudget returns the effective per-batch retry count.
func (j *Job) RetryBudget() int {
	if j.MaxRetries == nil || *j.MaxRetries < 0 {
		return DefaultMaxRetries
	}
	return *j.MaxRetries
}

// Validate rejects configurations that cannot produce a run.
func (j *Job) Validate() error {
	if len(j.Inputs) == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	if strings.TrimSpace(j.TargetLang) == "" {
		return fmt.Errorf("target language is required")
	}
	if strings.TrimSpace(j.OutputDir) == "" {
		return fmt.Errorf("output directory is required")
	}
	if j.Compare.Enabled && len(j.Compare.Models) == 0 {
		return fmt.Errorf("compare requires at least one candidate model")
	}
	return nil
}

// Profile resolves the effective provider profile for this job: job
// overrides first, then the environment defaults.
func (j *Job) Profile(defaults ProviderSettings) provider.Profile {
	p := defaults.Profile("default")
	if j.Provider != "" {
		p.Provider = provider.KindOf(j.Provider)
	}
	if j.Model != "" {
		p.Model = j.Model
	}
	if j.BaseURL != "" {
		p.BaseURL = j.BaseURL
	}
	if j.Endpoint != "" {
		p.Endpoint = j.Endpoint
	}
	if j.APIKey != "" {
		p.APIKey = j.APIKey
	}
	return p
}

// Options resolves the per-request translation options for this job.
func (j *Job) Options(defaults ProviderSettings) provider.Options {
	opts := provider.Options{
		SourceLang:     j.SourceLang,
		TargetLang:     j.TargetLang,
		Domain:         j.Domain,
		Temperature:    defaults.Temperature,
		TimeoutSeconds: defaults.TimeoutSeconds,
	}
	if j.Temperature != 0 {
		opts.Temperature = j.Temperature
	}
	if j.TimeoutSeconds != 0 {
		opts.TimeoutSeconds = j.TimeoutSeconds
	}
	return opts
}
