package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/bulkimg/internal/pipeline"
)

var matchCmd = &cobra.Command{
	Use:   "match <input_dir>",
	Short: "Show which catalog entry each image would be attached to",
	Long: `Scans a directory, matches every image filename against the catalog
and prints the result without processing or uploading anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	entries, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	files, err := pipeline.ScanDir(args[0])
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	s := pipeline.NewSession(pipeline.Options{
		Catalog:  entries,
		MinScore: cfg.Match.MinScore,
		Logger:   logger,
	})
	defer s.Close()

	items, rejected := s.Ingest(files)
	printMatchTable(items)
	printRejected(rejected)

	sum := pipeline.Summarize(items)
	fmt.Printf("  %d files: %d matched, %d unmapped, %d rejected\n\n",
		sum.Total, sum.Total-countUnmapped(items), countUnmapped(items), len(rejected))
	return nil
}

func countUnmapped(items []pipeline.Item) int {
	n := 0
	for _, it := range items {
		if !it.Mapped() {
			n++
		}
	}
	return n
}

func printMatchTable(items []pipeline.Item) {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		id, name := "-", "(unmapped)"
		if it.Match != nil {
			id, name = it.Match.ID, it.Match.DisplayName
		}
		rows = append(rows, []string{truncKey(it.FileName, 40), orDash(it.Candidate), name, id, formatScore(it.Score)})
	}
	fmt.Println()
	fmt.Println(renderTable(numeric(cols("File", "Candidate", "Entry", "ID", "Score"), "Score"), rows))
	fmt.Println()
}

func printRejected(rejected []error) {
	if len(rejected) == 0 {
		return
	}
	fmt.Printf("  Rejected (%d):\n", len(rejected))
	for _, err := range rejected {
		fmt.Printf("    ✗ %v\n", err)
	}
	fmt.Println()
}
