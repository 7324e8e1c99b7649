package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bytelense/internal/app"
	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/ingest"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type scanned struct {
	path string
	res  entity.DetailedAssessment
}

func main() {
	var (
		configPath = flag.String("config", "", "optional TOML config file")
		inmem      = flag.Bool("inmem", false, "keep the ledger in memory instead of the configured database")
		dir        = flag.String("dir", "", "directory of label images or .txt label files (required)")
		user       = flag.String("user", "local", "user the scans are logged for")
		servings   = flag.Float64("servings", 1, "servings consumed per scanned label")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		week       = flag.String("week", "", "first day of the exported week YYYY-MM-DD (defaults to this week's Monday)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *servings <= 0 {
		printError("Error: --servings must be positive\n")
		os.Exit(1)
	}
	if *week != "" {
		if _, err := time.Parse(time.DateOnly, *week); err != nil {
			printError("Error: invalid --week date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	a, err := app.Build(ctx, cfg, app.Options{InMemory: *inmem}, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	paths, fileErrs, stats, err := ingest.Discover(*dir, true)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, fe := range fileErrs {
		logger.Warn("skipped file", "path", fe.Path, "error", fe.Err)
	}
	logger.Info("discovery complete", "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)

	var (
		mu      sync.Mutex
		results []scanned
	)
	queue := async.NewWorkerQueue(a.ScanProcessor(func(job async.Job, res entity.DetailedAssessment) {
		mu.Lock()
		results = append(results, scanned{path: job.Path, res: res})
		mu.Unlock()
	}), logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(len(paths)+1),
		async.WithProcessTimeout(cfg.Pipeline.OverallDeadline+30*time.Second),
	)
	for _, p := range paths {
		job := async.Job{ScanID: uuid.NewString(), User: *user, Path: p, Servings: *servings}
		if err := queue.Enqueue(ctx, job); err != nil {
			logger.Error("failed to enqueue", "path", p, "error", err)
		}
	}
	queue.Shutdown(ctx)
	processed, failures := queue.Stats()

	weekStart := *week
	if weekStart == "" {
		weekStart = utils.WeekStart(time.Now(), a.Ledger.Location())
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), fmt.Sprintf("bytelense-%s-week-%s.xlsx", *user, weekStart))
	}

	logger.Info("exporting to XLSX", "output", *out, "week_start", weekStart)
	xlsxBytes, err := a.Export.ExportWeekXLSX(ctx, *user, weekStart)
	if err != nil {
		logger.Error("failed to export week", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_found", len(paths),
		"files_processed", processed,
		"failures", failures,
		"output_file", *out)

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })
	fmt.Printf("Batch processing complete!\n")
	for _, r := range results {
		fmt.Printf("  %-32s %5.1f %s %-10s confidence %.2f\n",
			filepath.Base(r.path), r.res.FinalScore, r.res.VerdictEmoji, r.res.Verdict, r.res.Confidence)
	}
	fmt.Printf("- Files found: %d\n", len(paths))
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}
