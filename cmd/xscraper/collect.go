package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"xscraper/pkg/auth"
	"xscraper/pkg/checkpoint"
	"xscraper/pkg/collector"
	"xscraper/pkg/config"
	"xscraper/pkg/history"
	"xscraper/pkg/logger"
	"xscraper/pkg/sink"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
	"xscraper/pkg/ui/tui"
)

var (
	// Collect command flags
	outputDir         string
	accountName       string
	batchSize         int
	maxRetries        int
	coverageThreshold float64
	includeReplies    bool
	enableFallback    bool
	archiveSQLite     bool
	useTUI            bool
	logoutAfter       bool
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect <account>",
	Short: "Collect the post history of an account",
	Long: `Collect all posts of an account that are not yet in the local history.

This command requires valid source credentials configured through one of:
  - Stored credentials (use 'xscraper auth login' to store)
  - Environment variables (XSCRAPER_AUTH_TOKEN and XSCRAPER_CSRF_TOKEN)
  - Configuration file

Runs are incremental: every collected post id is recorded in a persistent
history, and later runs stop as soon as they reach already-known material.
Interrupting a run is safe; collected ids are persisted on the way out.`,
	Example: `  # Collect with default settings
  xscraper collect nasa

  # Collect into a specific directory, skipping the reply sub-pass
  xscraper collect nasa --output ./archive --include-replies=false

  # Use a specific stored account and archive into SQLite
  xscraper collect nasa --account work --sqlite

  # Watch the run in the live dashboard
  xscraper collect nasa --tui`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runCollect(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for exports (default: ./archive)")
	collectCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored credential account")
	collectCmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per page request")
	collectCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum retry attempts for transient failures")
	collectCmd.Flags().Float64Var(&coverageThreshold, "coverage-threshold", 0, "coverage ratio below which the fallback path runs")
	collectCmd.Flags().BoolVar(&includeReplies, "include-replies", true, "run the reply sub-pass after the timeline pass")
	collectCmd.Flags().BoolVar(&enableFallback, "fallback", true, "allow escalation to the fallback collection path")
	collectCmd.Flags().BoolVar(&archiveSQLite, "sqlite", false, "archive records into a local SQLite database")
	collectCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with live run status")
	collectCmd.Flags().BoolVar(&logoutAfter, "logout", false, "invalidate the session server-side after the run")
}

func runCollect(cmd *cobra.Command, args []string) {
	username := twitter.SanitizeUsername(args[0])
	if !twitter.IsValidUsername(username) {
		ui.PrintError("Invalid account name", args[0])
		os.Exit(1)
	}

	if !useTUI && !quiet {
		ui.PrintInfo("Target account", "@"+username)
	}

	// Build flags map from command line
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if batchSize > 0 {
		flags["batch-size"] = batchSize
	}
	if maxRetries != 3 {
		flags["max-retries"] = maxRetries
	}
	if coverageThreshold > 0 {
		flags["coverage-threshold"] = coverageThreshold
	}
	if cmd.Flags().Changed("include-replies") {
		flags["include-replies"] = includeReplies
	}
	if cmd.Flags().Changed("fallback") {
		flags["fallback"] = enableFallback
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if archiveSQLite {
		cfg.Output.ArchiveSQLite = true
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log.WithField("version", version).Info("xscraper starting")

	resolveCredentials(cfg, log)

	if err := cfg.ValidateCredentials(); err != nil {
		log.WithError(err).Error("missing source credentials")
		ui.PrintError("Missing source credentials", err.Error())
		fmt.Println("\nTo store credentials securely, run:")
		fmt.Println("  xscraper auth login")
		fmt.Println("\nAlternatively set environment variables:")
		fmt.Println("  export XSCRAPER_AUTH_TOKEN=your_auth_token")
		fmt.Println("  export XSCRAPER_CSRF_TOKEN=your_csrf_token")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := twitter.NewClient(cfg.Source.BaseURL, cfg.Source.Timeout, log)
	client.Authorize(cfg.Source.BearerToken, cfg.Source.AuthToken, cfg.Source.CSRFToken)
	if cfg.Source.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.Source.UserAgent)
	}

	stateDir := cfg.Output.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(cfg.Output.BaseDirectory, ".state")
	}

	hist, err := history.NewStore(filepath.Join(stateDir, username+".history.json"), log)
	if err != nil {
		ui.PrintError("Failed to open history", err.Error())
		os.Exit(1)
	}

	checkpoints, err := checkpoint.NewManager(stateDir, username, log)
	if err != nil {
		ui.PrintError("Failed to open checkpoint store", err.Error())
		os.Exit(1)
	}

	// A snapshot from an interrupted run resumes the pass it names; stale
	// ones were already discarded by Load.
	resume, err := checkpoints.Load()
	if err != nil {
		log.WithError(err).Warn("failed to read checkpoint, starting fresh")
	} else if resume != nil {
		log.WithFields(map[string]interface{}{
			"phase":     resume.Phase,
			"collected": resume.CollectedSoFar,
		}).Info("resuming interrupted run")
		if !useTUI && !quiet {
			ui.PrintInfo("Resuming interrupted run",
				fmt.Sprintf("%s pass, %d records in", resume.Phase, resume.CollectedSoFar))
		}
	}

	sinks, err := buildSinks(cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize output sinks", err.Error())
		os.Exit(1)
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				log.WithError(err).WithField("sink", s.Name()).Warn("failed to close sink")
			}
		}
	}()

	opts := collector.Options{
		Source:        client,
		Authenticator: client,
		Config:        cfg,
		History:       hist,
		Checkpoints:   checkpoints,
		Checkpoint:    resume,
		Sinks:         sinks,
		Logger:        log,
	}

	if useTUI {
		runCollectTUI(ctx, opts, username, log)
	} else {
		tracker := ui.NewRunTracker()
		opts.OnProgress = func(p collector.Progress) {
			if quiet {
				return
			}
			if p.Phase != tracker.Phase {
				tracker.Update(p.Phase, p.Collected, p.Expected)
				tracker.PrintPhase()
			} else {
				tracker.Update(p.Phase, p.Collected, p.Expected)
			}
			tracker.PrintProgress()
		}

		orch := collector.NewOrchestrator(opts)
		result, err := orch.Run(ctx, username)
		fmt.Println()
		if err != nil {
			log.WithError(err).WithField("account", username).Error("collection failed")
			ui.PrintError("COLLECTION FAILED", err.Error())
			os.Exit(1)
		}

		reportRun(result)
	}

	if logoutAfter {
		if err := client.Deauthenticate(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("session logout failed")
			ui.PrintWarning("Session logout failed", err.Error())
		} else if !quiet {
			ui.PrintInfo("Session revoked", "the stored tokens are no longer valid")
		}
	}
}

// runCollectTUI runs the orchestrator under the live dashboard.
func runCollectTUI(ctx context.Context, opts collector.Options, username string, log logger.Logger) {
	terminal := tui.NewTUI(username)

	opts.OnProgress = func(p collector.Progress) {
		terminal.UpdatePhase(p.Phase, p.Collected, p.Expected)
		terminal.UpdateRequests(p.Requests, p.RateLimitHits)
	}

	runDone := make(chan error, 1)
	var result *collector.Result
	go func() {
		orch := collector.NewOrchestrator(opts)
		r, err := orch.Run(ctx, username)
		result = r
		runDone <- err
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()

	select {
	case err := <-runDone:
		terminal.Stop()
		<-tuiDone
		if err != nil {
			log.WithError(err).WithField("account", username).Error("collection failed")
			ui.PrintError("COLLECTION FAILED", err.Error())
			os.Exit(1)
		}
		reportRun(result)
	case err := <-tuiDone:
		// Dashboard quit first; the run keeps its cancellation semantics.
		if err != nil {
			log.WithError(err).Error("dashboard failed")
			os.Exit(1)
		}
	}
}

// resolveCredentials fills cfg.Source from the credential store chain when
// the config and environment did not already provide tokens.
func resolveCredentials(cfg *config.Config, log logger.Logger) {
	credManager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("credential stores unavailable")
		return
	}

	var account *auth.Account
	if accountName != "" {
		account, err = credManager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Stored account not found", accountName)
			ui.PrintInfo("Available accounts", "use 'xscraper auth list'")
			os.Exit(1)
		}
	} else if cfg.Source.AuthToken != "" && cfg.Source.CSRFToken != "" {
		log.Info("using credentials from configuration")
		return
	} else {
		account, err = credManager.RetrieveDefault()
		if err != nil {
			return
		}
	}

	cfg.Source.AuthToken = account.AuthToken
	cfg.Source.CSRFToken = account.CSRFToken
	if account.BearerToken != "" {
		cfg.Source.BearerToken = account.BearerToken
	}
	if account.UserAgent != "" {
		cfg.Source.UserAgent = account.UserAgent
	}
	log.WithField("account", account.Username).Info("using stored credentials")
	if !quiet {
		ui.PrintInfo("Using credentials", account.Username)
	}
}

// buildSinks assembles the configured output sinks.
func buildSinks(cfg *config.Config, log logger.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink

	if cfg.Output.ExportJSON {
		js, err := sink.NewJSONSink(cfg.Output.BaseDirectory, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, js)
	}

	if cfg.Output.ArchiveSQLite {
		ss, err := sink.NewSQLiteSink(cfg.Output.BaseDirectory, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ss)
	}

	return sinks, nil
}

// reportRun prints the end-of-run summary.
func reportRun(result *collector.Result) {
	stats := result.Stats

	ui.PrintSuccess("[COLLECTION COMPLETE]")
	ui.PrintInfo("Records collected", fmt.Sprintf("%d", len(result.Records)))
	if stats.ExpectedTotal > 0 {
		ui.PrintInfo("Coverage", fmt.Sprintf("%.0f%%", stats.Coverage()*100))
	}
	ui.PrintInfo("Requests issued", fmt.Sprintf("%d", stats.RequestsIssued))
	if stats.RateLimitHits > 0 {
		ui.PrintWarning("Rate limit hits", stats.RateLimitHits)
	}
	if stats.FallbackRan {
		ui.PrintInfo("Fallback records", fmt.Sprintf("%d", stats.FallbackRecords))
	}
	ui.PrintInfo("Duration", stats.Duration().Round(time.Second).String())
}
