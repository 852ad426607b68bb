package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/bulkimg/internal/matcher"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search catalog entries by name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	entries, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	hits := matcher.SearchCatalog(query, entries, searchLimit)
	if len(hits) == 0 {
		fmt.Printf("  No entries match %q\n", query)
		return nil
	}

	rows := make([][]string, 0, len(hits))
	for _, e := range hits {
		image := "no"
		if e.HasExistingAsset {
			image = "yes"
		}
		rows = append(rows, []string{e.ID, e.DisplayName, image, formatScore(matcher.Similarity(query, e.DisplayName))})
	}
	fmt.Println(renderTable(numeric(cols("ID", "Name", "Image", "Score"), "Score"), rows))
	return nil
}
