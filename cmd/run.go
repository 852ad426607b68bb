package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/manifest"
	"github.com/AnyUserName/bulkimg/internal/pipeline"
)

var (
	runAssign      []string
	runExclude     []string
	runReport      string
	runOutDir      string
	runConcurrency int
	runDryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run <input_dir>",
	Short: "Match, process and upload every image in a directory",
	Long: `Scans input directory for images (jpg, jpeg, png, gif, webp, bmp, tiff),
matches each filename against the catalog, shrinks matched and unmatched
images to fit 1000px as JPEG, then uploads the matched ones.

Use --assign file=id to override a match and --exclude file to drop a file
before processing. Unmatched files are processed but never uploaded.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runAssign, "assign", nil, "override a match: <file>=<entry id> (repeatable)")
	runCmd.Flags().StringArrayVar(&runExclude, "exclude", nil, "skip a file by name (repeatable)")
	runCmd.Flags().StringVarP(&runReport, "report", "r", "", "write a JSON session report to this path")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "also write processed JPEGs to this directory")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "j", 0, "images processed at once (0 = config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "process but do not upload")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	inputDir := args[0]

	absInput, err := filepath.Abs(inputDir)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}

	entries, err := loadCatalog(ctx)
	if err != nil {
		return err
	}

	var gw pipeline.Gateway
	if !runDryRun {
		if gw, err = cfg.UploadGateway(); err != nil {
			return err
		}
	}

	concurrency := cfg.Transcode.Concurrency
	if runConcurrency > 0 {
		concurrency = runConcurrency
	}
	opts := pipeline.Options{
		Catalog:           entries,
		Gateway:           gw,
		Transcode:         cfg.TranscodeOptions(),
		Concurrency:       concurrency,
		UploadConcurrency: cfg.Upload.Concurrency,
		MinScore:          cfg.Match.MinScore,
		Logger:            logger,
	}
	s := pipeline.NewSession(opts)
	defer s.Close()

	files, err := pipeline.ScanDir(absInput)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found in %s", inputDir)
	}

	items, rejected := s.Ingest(files)
	if len(items) == 0 {
		printRejected(rejected)
		return fmt.Errorf("no images found in %s", inputDir)
	}
	if err := applyOverrides(s, items, entries); err != nil {
		return err
	}
	printMatchTable(s.Items())
	printRejected(rejected)

	stop := watchProgress(s)
	tres, err := s.TranscodeAll()
	stop()
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	if tres.Attempted > 0 && tres.Failed == tres.Attempted {
		return fmt.Errorf("all %d images failed to process", tres.Failed)
	}

	if runOutDir != "" {
		if err := writeOutputs(runOutDir, s.Items()); err != nil {
			return err
		}
	}

	var ures pipeline.PhaseResult
	if !runDryRun {
		stop = watchProgress(s)
		ures, err = s.UploadReady(ctx)
		stop()
		if err != nil {
			return fmt.Errorf("upload: %w", err)
		}
	}

	report := manifest.New(uuid.NewString(), absInput)
	report.BuildInfo = &manifest.BuildInfo{
		MaxDimension:        opts.Transcode.MaxDimension,
		Quality:             opts.Transcode.Quality,
		Concurrency:         concurrency,
		UploadConcurrency:   opts.UploadConcurrency,
		MinScore:            opts.MinScore,
		TranscodeDurationMS: tres.Duration.Milliseconds(),
		UploadDurationMS:    ures.Duration.Milliseconds(),
		DryRun:              runDryRun,
	}
	report.FromItems(s.Items(), len(rejected))

	if runReport != "" {
		if err := manifest.WriteJSON(report, runReport); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	printRunReport(report, tres.Duration+ures.Duration)

	if ures.Attempted > 0 && ures.Failed == ures.Attempted {
		return fmt.Errorf("all %d uploads failed", ures.Failed)
	}
	return nil
}

// applyOverrides removes excluded files and applies --assign overrides by
// file name.
func applyOverrides(s *pipeline.Session, items []pipeline.Item, entries []catalog.Entry) error {
	byName := make(map[string]string, len(items))
	for _, it := range items {
		byName[it.FileName] = it.ID
	}

	for _, name := range runExclude {
		id, ok := byName[name]
		if !ok {
			return fmt.Errorf("--exclude %s: no such file in batch", name)
		}
		if err := s.Remove(id); err != nil {
			return fmt.Errorf("--exclude %s: %w", name, err)
		}
		delete(byName, name)
		logger.Debug("file excluded", "file", name)
	}

	for _, a := range runAssign {
		name, entryID, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return fmt.Errorf("--assign %q: want <file>=<entry id>", a)
		}
		id, found := byName[name]
		if !found {
			return fmt.Errorf("--assign %s: no such file in batch", name)
		}
		var target *catalog.Entry
		if entryID != "" {
			e, ok := catalog.Lookup(entries, entryID)
			if !ok {
				return fmt.Errorf("--assign %s: unknown entry %q", name, entryID)
			}
			target = &e
		}
		if err := s.Reassign(id, target); err != nil {
			return fmt.Errorf("--assign %s: %w", name, err)
		}
		logger.Debug("match overridden", "file", name, "entry", entryID)
	}
	return nil
}

// watchProgress prints item stage changes while a phase runs, but only when
// stderr is a terminal. The returned function stops it.
func watchProgress(s *pipeline.Session) func() {
	if !isTerminal(os.Stderr) {
		return func() {}
	}
	events, cancel := s.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Removed {
				continue
			}
			line := fmt.Sprintf("%-40s %-10s", truncKey(ev.FileName, 40), ev.Stage)
			if ev.Stage == pipeline.StageProcessing && ev.Progress.Message != "" {
				line += fmt.Sprintf(" %3d%% %s", ev.Progress.Percent, ev.Progress.Message)
			}
			if ev.Err != "" {
				line += " " + ev.Err
			}
			fmt.Fprintf(os.Stderr, "\r\033[K[bulkimg] %s", line)
		}
		fmt.Fprint(os.Stderr, "\r\033[K")
	}()
	return func() {
		cancel()
		<-done
	}
}

// writeOutputs writes every processed asset to dir under its output name.
func writeOutputs(dir string, items []pipeline.Item) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	var errs []error
	for _, it := range items {
		if it.Asset == nil || it.Asset.Data == nil {
			continue
		}
		path := filepath.Join(dir, it.Asset.FileName)
		if err := os.WriteFile(path, it.Asset.Data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func printRunReport(r *manifest.Report, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║               bulkimg run complete               ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	sum, st := r.Summary, r.Stats
	fmt.Printf("  Files:       %d  (%d rejected)\n", sum.Total, sum.Rejected)
	fmt.Printf("  Uploaded:    %d\n", sum.Uploaded)
	fmt.Printf("  Ready:       %d\n", sum.Ready)
	fmt.Printf("  Unmapped:    %d\n", sum.Unmapped)
	fmt.Printf("  Errors:      %d\n", sum.Error)
	fmt.Printf("  Input size:  %s\n", formatBytes(st.TotalInputBytes))
	fmt.Printf("  Output size: %s\n", formatBytes(st.TotalOutputBytes))
	fmt.Printf("  Saved:       %d%%\n", st.SavedPercent)
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	if r.BuildInfo != nil {
		fmt.Printf("  Concurrency: %d transcode, %d upload\n", r.BuildInfo.Concurrency, r.BuildInfo.UploadConcurrency)
	}
	fmt.Println()

	var failed []manifest.Item
	for _, it := range r.Items {
		if it.Error != "" {
			failed = append(failed, it)
		}
	}
	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].File < failed[j].File })
		fmt.Printf("  Failures (%d):\n", len(failed))
		for _, it := range failed {
			fmt.Printf("    ✗ %-40s %s\n", truncKey(it.File, 40), it.Error)
		}
		fmt.Println()
	}
}
