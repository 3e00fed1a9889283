/*
Package main is the entry point for the dnswarm command-line application.

dnswarm is a tool for collecting domains and resolving them in bulk.
Its primary functionalities include:
  - Crawling outward from a seed domain to collect subdomains (and optionally
    any referenced domain) into a deduplicated domain set.
  - Running rate-limited, concurrent batch DNS queries over a domain set and
    exporting the per-domain results.
  - Empirically tuning the resolver configuration (rate, workers, timeout,
    batch size) against a trial domain set and persisting the winner.

The application uses the Cobra library for command-line interface structure
and flag parsing. It leverages several internal packages:
  - `internal/core`: The rate limiter, worker pool, batch query engine and
    performance tuner, plus the shared domain set and report types.
  - `internal/resolver`: The resolve capability (system stub resolver or a
    direct DNS client) with per-domain error classification.
  - `internal/collector`: The breadth-first domain discovery crawler.
  - `internal/client`: A configurable HTTP client used for page fetches.
  - `internal/config`: INI-file persistence of tool settings.
  - `internal/export`: JSON/CSV/XLSX serialization of results.
  - `internal/metrics`: Prometheus metrics for monitoring.

Graceful shutdown is handled via context cancellation triggered by OS signals
(SIGINT, SIGTERM); in-flight queries run to completion or timeout, so
cancellation latency is bounded by the configured timeout.
*/
package main

/*
dnswarm — fast bulk DNS resolver and domain collector in Go
Copyright (C) 2025  Pepijn van der Stap <dnswarm@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/x-stp/dnswarm/internal/client"
	"github.com/x-stp/dnswarm/internal/collector"
	"github.com/x-stp/dnswarm/internal/config"
	"github.com/x-stp/dnswarm/internal/core"
	"github.com/x-stp/dnswarm/internal/export"
	"github.com/x-stp/dnswarm/internal/metrics"
	"github.com/x-stp/dnswarm/internal/resolver"
)

// Global flags (persistent across commands)
var (
	configFile    string
	enableMetrics bool
	metricsPort   int
)

// Flags specific to the collect command
var (
	collectTarget      int
	collectAnyDomain   bool
	collectExtended    bool
	collectConcurrency int
	collectStats       bool
	collectTurbo       bool
)

// Flags specific to the query command
var (
	queryInput     string
	queryOutputDir string
	queryFormat    string
	queryQPS       float64
	queryWorkers   int
	queryTimeout   time.Duration
	queryBatchSize int
	queryDirect    bool
	queryServer    string
	queryStats     bool
)

// Flags specific to the tune command
var (
	tuneInput  string
	tuneApply  bool
	tuneDirect bool
	tuneServer string
	tuneTop    int
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "dnswarm",
	Short: "dnswarm - A bulk DNS resolver, domain collector and resolver tuner",
}

var collectCmd = &cobra.Command{
	Use:   "collect <seed-domain>",
	Short: "Crawl from a seed domain and collect domains into a set",
	Long: `Crawls breadth-first from the seed domain's page, extracting referenced
hostnames. By default only strict subdomains of the seed's registered domain
are collected; --any-domain lifts that filter. The collected set is written
to the data directory as a JSON list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollect(args[0])
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [domain ...]",
	Short: "Resolve a domain set in rate-limited batches and export the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dnswarm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dnswarm %s\n", version)
	},
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search for the resolver configuration with the best measured throughput",
	Long: `Runs timed trial batches over a trial domain set, varying one resolver
parameter at a time (queries per second, workers, timeout, batch size) and
keeping the best value of each. Scoring penalizes failures multiplicatively,
so a fast-but-unreliable configuration loses to a slower reliable one.
With --apply the winning configuration is written back to the settings file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTune()
	},
}

func init() {
	// Persistent flags (available for all commands)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile, "Path to the settings file")
	rootCmd.PersistentFlags().BoolVar(&enableMetrics, "metrics", false, "Expose Prometheus metrics")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 9090, "Prometheus metrics port")

	// Flags for the collect command
	collectCmd.Flags().IntVarP(&collectTarget, "target", "t", 0, "Stop after collecting this many domains (0 uses the settings file)")
	collectCmd.Flags().BoolVar(&collectAnyDomain, "any-domain", false, "Collect every referenced domain instead of only subdomains of the seed")
	collectCmd.Flags().BoolVar(&collectExtended, "extended", false, "Also extract from script, stylesheet, image and meta references")
	collectCmd.Flags().IntVarP(&collectConcurrency, "concurrency", "c", 0, "Concurrent page fetches (0 uses the settings file)")
	collectCmd.Flags().BoolVarP(&collectStats, "stats", "s", true, "Show statistics during collection")
	collectCmd.Flags().BoolVar(&collectTurbo, "turbo", false, "Enable aggressive HTTP client settings")

	// Flags for the query command
	queryCmd.Flags().StringVarP(&queryInput, "input", "i", "", "Domain list file (JSON array, {\"domains\":[...]}, CSV or one per line)")
	queryCmd.Flags().StringVarP(&queryOutputDir, "output", "o", "", "Output directory for the report (defaults to the data directory)")
	queryCmd.Flags().StringVarP(&queryFormat, "format", "f", "", "Report format: json, csv or xlsx (defaults to the settings file)")
	queryCmd.Flags().Float64Var(&queryQPS, "qps", 0, "Queries per second (an explicit 0 disables the rate cap; unset uses the settings file)")
	queryCmd.Flags().IntVarP(&queryWorkers, "workers", "w", 0, "Concurrent resolver workers (0 uses the settings file)")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "Per-query timeout (0 uses the settings file)")
	queryCmd.Flags().IntVarP(&queryBatchSize, "batch", "b", 0, "Domains per batch (0 uses the settings file)")
	queryCmd.Flags().BoolVar(&queryDirect, "direct", false, "Query a DNS server directly instead of using the system resolver")
	queryCmd.Flags().StringVar(&queryServer, "server", "", "DNS server address (host:port) for --direct or a custom stub target")
	queryCmd.Flags().BoolVarP(&queryStats, "stats", "s", true, "Show statistics during resolution")

	// Flags for the tune command
	tuneCmd.Flags().StringVarP(&tuneInput, "input", "i", "", "Trial domain list file (defaults to a built-in set)")
	tuneCmd.Flags().BoolVar(&tuneApply, "apply", false, "Write the winning configuration back to the settings file")
	tuneCmd.Flags().BoolVar(&tuneDirect, "direct", false, "Query a DNS server directly instead of using the system resolver")
	tuneCmd.Flags().StringVar(&tuneServer, "server", "", "DNS server address (host:port)")
	tuneCmd.Flags().IntVar(&tuneTop, "top", 10, "How many ranked trial results to display")

	// Add subcommands to the root command
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tuneCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// startMetrics brings up the metrics endpoint when requested. Called from
// command handlers so the persistent flags have been parsed.
func startMetrics() {
	if !enableMetrics {
		return
	}
	metrics.EnableMetrics()
	if err := metrics.StartMetricsServer(fmt.Sprintf(":%d", metricsPort)); err != nil {
		log.Printf("Failed to start metrics server: %v", err)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, initiating shutdown...", sig)
		cancel()
	}()
	return ctx, cancel
}

// buildResolver picks the resolve capability from the direct/server flags.
func buildResolver(direct bool, server string) resolver.Resolver {
	if direct {
		return resolver.NewDirectResolver(server)
	}
	return resolver.NewSystemResolver(server)
}

// runCollect is the handler for the 'collect' command.
func runCollect(seed string) error {
	startMetrics()

	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}

	target := collectTarget
	if target == 0 {
		target = settings.General.TargetCount
	}
	concurrency := collectConcurrency
	if concurrency == 0 {
		concurrency = settings.Crawler.CollectThreads
	}
	extraction := collector.ExtractLinks
	if collectExtended || settings.ExtendedExtraction() {
		extraction = collector.ExtractExtended
	}

	log.Printf("Starting collection: seed=%s, target=%d, concurrency=%d, extended=%t, turbo=%t",
		seed, target, concurrency, extraction == collector.ExtractExtended, collectTurbo)

	if collectTurbo {
		log.Println("Enabling turbo mode for HTTP client")
		client.ConfigureTurboMode()
	} else {
		client.ConfigureHTTPClient(&client.Config{RequestTimeout: settings.CrawlTimeout()})
	}

	c, err := collector.New(collector.Config{
		TargetCount:    target,
		SubdomainsOnly: !collectAnyDomain,
		Extraction:     extraction,
		Concurrency:    concurrency,
		UserAgent:      settings.Crawler.UserAgent,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var statsWg sync.WaitGroup
	if collectStats {
		statsWg.Add(1)
		go func() {
			defer statsWg.Done()
			displayCollectStats(ctx, c)
		}()
	}

	set, runErr := c.Run(ctx, seed, nil)
	cancel()
	statsWg.Wait()

	if runErr != nil && !errors.Is(runErr, core.ErrCancelled) {
		return runErr
	}
	if errors.Is(runErr, core.ErrCancelled) {
		log.Println("Collection cancelled; exporting partial set.")
	}

	domains := set.Snapshot()
	displayFinalCollectStats(c, len(domains))

	if len(domains) == 0 {
		log.Println("No domains collected, nothing to export.")
		return nil
	}

	path, err := export.ExportDomains(settings.General.DataDirectory, "domains_"+seed, domains)
	if err != nil {
		return err
	}
	log.Printf("Collected %d domains written to %s", len(domains), path)
	return nil
}

// displayCollectStats periodically shows collection progress.
func displayCollectStats(ctx context.Context, c *collector.Collector) {
	ticker := time.NewTicker(time.Second * 2)
	defer ticker.Stop()
	stats := c.GetStats()
	for {
		select {
		case <-ticker.C:
			elapsed := time.Since(stats.StartTime).Seconds()
			if elapsed < 0.1 {
				elapsed = 0.1
			}
			fetched := stats.PagesFetched.Load()
			fmt.Printf("\rDomains: %d | Pages: %d fetched, %d failed | Rate: %.1f pages/s",
				stats.DomainsFound.Load(),
				fetched,
				stats.PagesFailed.Load(),
				float64(fetched)/elapsed,
			)
		case <-ctx.Done():
			fmt.Println()
			return
		}
	}
}

// displayFinalCollectStats shows the summary collection statistics.
func displayFinalCollectStats(c *collector.Collector, total int) {
	stats := c.GetStats()
	elapsed := time.Since(stats.StartTime)
	fmt.Println()
	fmt.Printf("--- Collection Statistics ---\n")
	fmt.Printf(" Processing Time: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Domains Found: %d\n", total)
	fmt.Printf("   Pages Fetched: %d\n", stats.PagesFetched.Load())
	fmt.Printf("    Pages Failed: %d\n", stats.PagesFailed.Load())
	fmt.Printf("-----------------------------\n")
}

// runQuery is the handler for the 'query' command.
func runQuery(cmd *cobra.Command, args []string) error {
	startMetrics()

	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}

	cfg := settings.ResolverConfig()
	if cmd.Flags().Changed("qps") {
		cfg.QueriesPerSecond = queryQPS
	}
	if queryWorkers > 0 {
		cfg.MaxWorkers = queryWorkers
	}
	if queryTimeout > 0 {
		cfg.Timeout = queryTimeout
	}
	if queryBatchSize > 0 {
		cfg.BatchSize = queryBatchSize
	}

	domains, err := gatherDomains(args)
	if err != nil {
		return err
	}

	format := queryFormat
	if format == "" {
		format = settings.Export.DefaultFormat
	}
	outputDir := queryOutputDir
	if outputDir == "" {
		outputDir = settings.General.DataDirectory
	}

	log.Printf("Starting batch query: %d domains, qps=%.1f, workers=%d, timeout=%v, batch=%d",
		len(domains), cfg.QueriesPerSecond, cfg.MaxWorkers, cfg.Timeout, cfg.BatchSize)

	engine := core.NewEngine(buildResolver(queryDirect, queryServer))

	ctx, cancel := signalContext()
	defer cancel()

	var statsWg sync.WaitGroup
	if queryStats {
		statsWg.Add(1)
		go func() {
			defer statsWg.Done()
			displayQueryStats(ctx, engine)
		}()
	}

	report, runErr := engine.RunBatchQuery(ctx, domains, cfg, nil)
	cancel()
	statsWg.Wait()

	if runErr != nil {
		return runErr
	}
	if report.Cancelled {
		log.Println("Batch query cancelled; exporting partial report.")
	}

	displayFinalQueryStats(report)

	path, err := exportQueryOutput(settings, outputDir, format, report)
	if err != nil {
		return err
	}
	log.Printf("Results written to %s", path)
	return nil
}

// exportQueryOutput writes the run's output and returns the written path.
// With IncludeDNSInfo off only the resolved domain list is saved, without
// per-domain DNS details.
func exportQueryOutput(settings *config.Settings, outputDir, format string, report *core.QueryReport) (string, error) {
	if !settings.Export.IncludeDNSInfo {
		return export.ExportDomains(outputDir, "resolved", export.SuccessfulDomains(report))
	}
	return export.ExportReport(outputDir, "results", format, report)
}

// gatherDomains assembles the query input from the --input file and/or args,
// deduplicated across both sources in first-seen order.
func gatherDomains(args []string) ([]string, error) {
	var domains []string
	seen := make(map[string]struct{})
	add := func(d string) {
		if d == "" {
			return
		}
		if _, dup := seen[d]; dup {
			return
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}

	if queryInput != "" {
		imported, err := export.ImportDomains(queryInput)
		if err != nil {
			return nil, err
		}
		for _, d := range imported {
			add(d)
		}
	}
	for _, arg := range args {
		add(core.NormalizeDomain(arg))
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("no domains to query: pass them as arguments or via --input")
	}
	return domains, nil
}

// displayQueryStats periodically shows batch query progress.
func displayQueryStats(ctx context.Context, engine *core.Engine) {
	ticker := time.NewTicker(time.Second * 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := engine.GetStats()
			elapsed := time.Since(stats.GetStartTime()).Seconds()
			if elapsed < 0.1 {
				elapsed = 0.1
			}
			processed := stats.ProcessedDomains.Load()
			total := stats.TotalDomains.Load()
			percentDone := 0.0
			if total > 0 {
				percentDone = float64(processed) / float64(total) * 100
			}
			fmt.Printf("\rProcessed: %d/%d (%.1f%%) | OK: %d | Failed: %d | Rate: %.1f dom/s",
				processed,
				total,
				percentDone,
				stats.SuccessDomains.Load(),
				stats.FailedDomains.Load(),
				float64(processed)/elapsed,
			)
		case <-ctx.Done():
			fmt.Println()
			return
		}
	}
}

// displayFinalQueryStats shows the summary query statistics.
func displayFinalQueryStats(report *core.QueryReport) {
	fmt.Println()
	fmt.Printf("--- Batch Query Statistics ---\n")
	fmt.Printf(" Processing Time: %v\n", report.Elapsed.Round(time.Millisecond))
	fmt.Printf("   Total Domains: %d\n", len(report.Results))
	fmt.Printf("      Successful: %d\n", report.SuccessCount)
	fmt.Printf("          Failed: %d\n", report.FailureCount)
	fmt.Printf("      Throughput: %.1f successful/sec\n", report.Throughput())
	fmt.Printf("    Success Rate: %.1f%%\n", report.SuccessRate()*100)
	if report.Cancelled {
		fmt.Printf("          Status: cancelled (partial)\n")
	}
	fmt.Printf("------------------------------\n")
}

// runTune is the handler for the 'tune' command.
func runTune() error {
	startMetrics()

	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}

	var domains []string
	if tuneInput != "" {
		domains, err = export.ImportDomains(tuneInput)
		if err != nil {
			return err
		}
	} else {
		domains = core.DefaultTrialDomains()
		log.Printf("Using built-in trial set of %d domains.", len(domains))
	}

	space := core.DefaultSearchSpace()
	tuner := core.NewTuner(buildResolver(tuneDirect, tuneServer), settings.ResolverConfig())

	ctx, cancel := signalContext()
	defer cancel()

	trialNum := 0
	best, rankedTrials, runErr := tuner.Run(ctx, domains, space, func(tr core.TrialResult) {
		trialNum++
		log.Printf("Trial %d: qps=%.0f workers=%d timeout=%v batch=%d -> score %.2f (%d ok, %d failed, %v)",
			trialNum,
			tr.Config.QueriesPerSecond, tr.Config.MaxWorkers, tr.Config.Timeout, tr.Config.BatchSize,
			tr.Score, tr.SuccessCount, tr.FailureCount, tr.Elapsed.Round(time.Millisecond))
	})
	if runErr != nil && !errors.Is(runErr, core.ErrCancelled) {
		return runErr
	}
	if errors.Is(runErr, core.ErrCancelled) {
		log.Println("Tuning cancelled; showing results so far.")
	}
	if best == nil {
		return fmt.Errorf("no completed trials")
	}

	displayRankedTrials(rankedTrials)

	fmt.Printf("\nBest configuration: qps=%.0f workers=%d timeout=%v batch=%d (score %.2f)\n",
		best.Config.QueriesPerSecond, best.Config.MaxWorkers, best.Config.Timeout,
		best.Config.BatchSize, best.Score)

	if !tuneApply {
		log.Println("Run again with --apply to persist this configuration.")
		return nil
	}
	settings.ApplyTuned(best.Config)
	if err := settings.Save(configFile); err != nil {
		return err
	}
	log.Printf("Applied tuned configuration to %s", configFile)
	return nil
}

// displayRankedTrials prints the ranked trial table, best first.
func displayRankedTrials(trials []core.TrialResult) {
	fmt.Println()
	fmt.Printf("--- Ranked Trial Results ---\n")
	fmt.Printf("%4s %6s %8s %9s %6s %9s %5s %7s\n",
		"#", "qps", "workers", "timeout", "batch", "score", "ok", "failed")
	for i, tr := range trials {
		if i >= tuneTop {
			fmt.Printf("(%d more not shown)\n", len(trials)-tuneTop)
			break
		}
		fmt.Printf("%4d %6.0f %8d %9v %6d %9.2f %5d %7d\n",
			i+1,
			tr.Config.QueriesPerSecond,
			tr.Config.MaxWorkers,
			tr.Config.Timeout,
			tr.Config.BatchSize,
			tr.Score,
			tr.SuccessCount,
			tr.FailureCount)
	}
	fmt.Printf("----------------------------\n")
}
