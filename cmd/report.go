package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hal/prflow/config"
	"github.com/hal/prflow/internal/aggregate"
	"github.com/hal/prflow/internal/bucket"
	"github.com/hal/prflow/internal/duration"
	"github.com/hal/prflow/internal/extract"
	"github.com/hal/prflow/internal/ghclient"
	"github.com/hal/prflow/internal/jiraclient"
	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/metrics"
	"github.com/hal/prflow/internal/output"
	"github.com/hal/prflow/internal/service"
)

// NewCmdReport creates the report command.
func NewCmdReport(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Analyze issue-to-PR flow (same as root prflow)",
		Long: `Queries Jira for issues, resolves the pull requests they reference,
and reports merge, review, and workflow timing metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}

	addReportFlags(cmd, opts)
	return cmd
}

// addReportFlags adds the report-specific flags to a command.
func addReportFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Jira query (JQL) selecting the issues to analyze (required)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format (text, json, csv)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVarP(&opts.Bucket, "bucket", "b", "", "Bucket mode (daily, weekly, monthly, n_days)")
	cmd.Flags().IntVar(&opts.BucketDays, "bucket-days", 0, "Span for n_days buckets")
	cmd.Flags().StringVar(&opts.Cutoff, "cutoff", "", "Ignore PRs older than this (e.g. 6mo, 90d)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "PRs per GraphQL batch request (1-100)")
	cmd.Flags().BoolVar(&opts.FirstSourceOnly, "first-source-only", false, "Stop reference extraction at the first field that yields PRs")
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug)")

	// Profiling flags
	cmd.Flags().StringVar(&opts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	cmd.Flags().StringVar(&opts.MemProfile, "memprofile", "", "Write memory profile to file")
}

func runReport(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	profiler := NewProfiler(opts.CPUProfile, opts.MemProfile)
	if err := profiler.Start(); err != nil {
		return err
	}
	defer profiler.Stop()

	log.Initialize(opts.Verbosity, os.Stderr)

	if opts.Query == "" {
		return fmt.Errorf("no query given. Pass one with --query (e.g. --query 'project = PROJ AND sprint = 42')")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings := cfg.GetSettings()

	format, err := resolveFormat(opts, settings)
	if err != nil {
		return err
	}

	svcCfg, err := buildPipelineConfig(opts, settings)
	if err != nil {
		return err
	}

	analyzer, err := buildAnalyzer(ctx, cfg, settings, opts, svcCfg)
	if err != nil {
		return err
	}

	res, err := analyzer.Run(ctx, opts.Query)
	log.ProgressDone()
	if err != nil {
		return err
	}

	return renderResult(res, format, opts.Output)
}

// resolveFormat picks the output format from the flag, falling back to config.
func resolveFormat(opts *Options, settings config.Settings) (output.Format, error) {
	name := opts.Format
	if name == "" {
		name = settings.DefaultFormat
	}
	return output.ParseFormat(name)
}

// buildPipelineConfig assembles and validates the analysis settings from
// config and flag overrides.
func buildPipelineConfig(opts *Options, settings config.Settings) (service.Config, error) {
	bucketCfg := bucket.Config{
		Mode: bucket.Mode(settings.BucketMode),
		Days: settings.BucketDays,
	}
	if opts.Bucket != "" {
		bucketCfg.Mode = bucket.Mode(opts.Bucket)
	}
	if opts.BucketDays > 0 {
		bucketCfg.Days = opts.BucketDays
	}

	cutoffMonths := settings.CutoffMonths
	if opts.Cutoff != "" {
		months, err := duration.Months(opts.Cutoff)
		if err != nil {
			return service.Config{}, fmt.Errorf("invalid cutoff: %w", err)
		}
		cutoffMonths = months
	}

	svcCfg := service.Config{
		Derive: metrics.DeriveConfig{
			ApprovalKeywords: settings.ApprovalKeywords,
			NegativePolicy:   metrics.NegativePolicy(settings.NegativeDurations),
		},
		Statuses: metrics.StatusSets{
			InProgress: settings.InProgressStatuses,
			Resolved:   settings.ResolvedStatuses,
		},
		Aggregate: aggregate.Config{
			Bucket:       bucketCfg,
			CutoffMonths: cutoffMonths,
		},
		OnProgress: reportProgress,
	}
	return svcCfg, nil
}

// buildAnalyzer wires the Jira client, GitHub clients, and extractor into a
// ready-to-run pipeline.
func buildAnalyzer(ctx context.Context, cfg *config.Config, settings config.Settings, opts *Options, svcCfg service.Config) (*service.Analyzer, error) {
	if settings.JiraURL == "" {
		return nil, fmt.Errorf("Jira URL not configured. Set jira_url in the config file (run 'prflow config init')")
	}

	jiraToken := cfg.GetJiraToken()
	jiraUser, jiraPass := cfg.GetJiraBasicAuth()
	if jiraToken == "" && jiraUser == "" {
		return nil, fmt.Errorf("Jira credentials not configured. Set the JIRA_TOKEN environment variable (or JIRA_USERNAME and JIRA_PASSWORD)")
	}

	jc, err := jiraclient.NewClient(jiraclient.Config{
		BaseURL:  settings.JiraURL,
		Token:    jiraToken,
		Username: jiraUser,
		Password: jiraPass,
	})
	if err != nil {
		return nil, err
	}

	ghToken := cfg.GetGitHubToken()
	if ghToken == "" {
		return nil, fmt.Errorf("GitHub token not configured. Set the GITHUB_TOKEN environment variable")
	}

	ghClient, err := ghclient.NewClient(ctx, ghToken)
	if err != nil {
		return nil, err
	}

	batchSize := settings.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}
	orchestrator, err := ghclient.NewOrchestrator(ghClient, ghClient, batchSize)
	if err != nil {
		return nil, err
	}

	firstSourceOnly := settings.FirstSourceOnly || opts.FirstSourceOnly
	extractor := extract.New(settings.PRField, firstSourceOnly)

	return service.New(jc, orchestrator, extractor, svcCfg)
}

// reportProgress surfaces fetch progress on stderr at info verbosity.
func reportProgress(phase string, completed, total int) {
	if total == 0 {
		return
	}
	percent := (completed * 100) / total
	log.Progress("Fetching PRs: %d/%d (%d%%)...", completed, total, percent)
}

// renderResult writes the formatted report to the output path or stdout.
func renderResult(res *service.Result, format output.Format, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	formatter := output.NewFormatter(format)
	if err := formatter.Write(res, w); err != nil {
		return err
	}
	if path != "" {
		log.Info("report written", "path", path)
	}
	return nil
}
