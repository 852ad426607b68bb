package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/bulkimg/internal/gateway"
	"github.com/AnyUserName/bulkimg/internal/hasher"
	"github.com/AnyUserName/bulkimg/internal/manifest"
	"github.com/AnyUserName/bulkimg/internal/pipeline"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <report_path>",
	Short: "Check that every uploaded asset in a report is present in the asset directory",
	Long: `Reads a session report and, for each uploaded item, checks that the
directory gateway holds a file for its entry whose content hash matches the
one recorded at processing time. Only meaningful for gateway type "dir".`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(_ *cobra.Command, args []string) error {
	r, err := manifest.ReadJSON(args[0])
	if err != nil {
		return err
	}
	if cfg.Gateway.Type != "dir" {
		return fmt.Errorf("verify needs gateway type \"dir\", config has %q", cfg.Gateway.Type)
	}

	store := cfg.Directory()
	problems, checked := verifyReport(r, store)

	if len(problems) == 0 {
		fmt.Printf("  ✓ %d uploaded assets present in %s\n", checked, store.Dir)
		return nil
	}

	fmt.Printf("  ✗ Report has %d problem(s):\n", len(problems))
	for _, p := range problems {
		fmt.Printf("    • %s\n", p)
	}
	return fmt.Errorf("verification failed with %d problems", len(problems))
}

func verifyReport(r *manifest.Report, store *gateway.Directory) (problems []string, checked int) {
	if r.Version != manifest.SupportedReportVersion {
		problems = append(problems, fmt.Sprintf("unsupported report version: %d", r.Version))
	}

	seen := map[string]string{}
	for _, it := range r.Items {
		if it.Stage != string(pipeline.StageUploaded) {
			continue
		}
		checked++
		if it.EntryID == "" {
			problems = append(problems, fmt.Sprintf("%s: uploaded without an entry id", it.File))
			continue
		}
		if prev, dup := seen[it.EntryID]; dup {
			// Later uploads replace earlier ones; only the last can match.
			problems = append(problems, fmt.Sprintf("%s: entry %s also uploaded by %s", it.File, it.EntryID, prev))
		}
		seen[it.EntryID] = it.File
		if it.AssetURL == "" {
			problems = append(problems, fmt.Sprintf("%s: missing asset url", it.File))
		}

		path, err := store.Path(it.EntryID)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", it.File, err))
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: asset not found: %s", it.File, path))
			continue
		}
		sum, err := hasher.ContentHashReader(f, 0)
		f.Close()
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: read %s: %v", it.File, path, err))
			continue
		}
		if it.Hash != "" && sum != it.Hash {
			problems = append(problems, fmt.Sprintf("%s: hash mismatch: report=%s, disk=%s", it.File, it.Hash, sum))
		}
	}
	return problems, checked
}
