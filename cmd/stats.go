package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/bulkimg/internal/manifest"
	"github.com/AnyUserName/bulkimg/internal/pipeline"
)

// defaultReportName is looked up when stats is pointed at a directory.
const defaultReportName = "bulkimg.report.json"

var statsCmd = &cobra.Command{
	Use:   "stats <report_or_dir>",
	Short: "Display statistics for a session report",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, defaultReportName)
	}

	r, err := manifest.ReadJSON(path)
	if err != nil {
		return err
	}

	printStats(r)
	return nil
}

func printStats(r *manifest.Report) {
	fmt.Println()
	fmt.Printf("  Report version: %d\n", r.Version)
	fmt.Printf("  Generated:      %s\n", r.GeneratedAt)
	fmt.Printf("  Session:        %s\n", r.SessionID)
	fmt.Printf("  Source:         %s\n", r.Source)
	if b := r.BuildInfo; b != nil {
		fmt.Printf("  Output:         %dpx max, JPEG q%d\n", b.MaxDimension, b.Quality)
		fmt.Printf("  Concurrency:    %d transcode, %d upload\n", b.Concurrency, b.UploadConcurrency)
		if b.DryRun {
			fmt.Println("  Dry run:        yes")
		}
	}
	fmt.Println()

	sum := r.Summary
	fmt.Println(renderTable(
		numeric(cols("Bucket", "Items"), "Items"),
		[][]string{
			{"total", fmt.Sprint(sum.Total)},
			{"rejected", fmt.Sprint(sum.Rejected)},
			{"pending", fmt.Sprint(sum.Pending)},
			{"ready", fmt.Sprint(sum.Ready)},
			{"unmapped", fmt.Sprint(sum.Unmapped)},
			{"uploaded", fmt.Sprint(sum.Uploaded)},
			{"error", fmt.Sprint(sum.Error)},
		},
	))
	fmt.Println()

	s := r.Stats
	fmt.Printf("  Processed:      %d  (%d resized, %d converted)\n", s.Processed, s.Resized, s.Converted)
	fmt.Printf("  Input size:     %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:    %s\n", formatBytes(s.TotalOutputBytes))
	fmt.Printf("  Saved:          %d%%\n", s.SavedPercent)
	fmt.Println()

	// Heaviest outputs first.
	var heavy []manifest.Item
	for _, it := range r.Items {
		if it.Stats != nil {
			heavy = append(heavy, it)
		}
	}
	sort.SliceStable(heavy, func(i, j int) bool {
		return heavy[i].Stats.ProcessedSize > heavy[j].Stats.ProcessedSize
	})
	if len(heavy) > 10 {
		heavy = heavy[:10]
	}
	if len(heavy) > 0 {
		rows := make([][]string, 0, len(heavy))
		for _, it := range heavy {
			st := it.Stats
			rows = append(rows, []string{
				truncKey(it.File, 40),
				fmt.Sprintf("%dx%d", st.ProcessedWidth, st.ProcessedHeight),
				formatBytes(st.OriginalSize),
				formatBytes(st.ProcessedSize),
				fmt.Sprintf("%d%%", st.CompressionRatioPercent),
			})
		}
		fmt.Println("  Largest outputs:")
		fmt.Println(renderTable(
			numeric(cols("File", "Size", "Original", "Processed", "Saved"), "Size", "Original", "Processed", "Saved"),
			rows,
		))
		fmt.Println()
	}

	var warnings []string
	for _, it := range r.Items {
		switch {
		case it.Error != "":
			warnings = append(warnings, fmt.Sprintf("%s: %s", it.File, it.Error))
		case it.EntryID == "":
			warnings = append(warnings, fmt.Sprintf("%s: no catalog entry matched %q", it.File, it.Candidate))
		case it.Stage == string(pipeline.StageProcessed):
			warnings = append(warnings, fmt.Sprintf("%s: processed but never uploaded", it.File))
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
		fmt.Println()
	}
}
