package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/AnyUserName/bulkimg/internal/catalog"
)

// column is one table column. Numeric columns are right-aligned.
type column struct {
	Header  string
	Numeric bool
}

func cols(headers ...string) []column {
	out := make([]column, len(headers))
	for i, h := range headers {
		out[i] = column{Header: h}
	}
	return out
}

// numeric marks the named columns as numeric.
func numeric(cs []column, headers ...string) []column {
	for i := range cs {
		for _, h := range headers {
			if cs[i].Header == h {
				cs[i].Numeric = true
			}
		}
	}
	return cs
}

func renderTable(cs []column, rows [][]string) string {
	if len(cs) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(cs))
	configs := make([]table.ColumnConfig, len(cs))
	for i, c := range cs {
		header[i] = c.Header
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if c.Numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, r := range rows {
		row := make(table.Row, len(cs))
		for i := range row {
			if i < len(r) {
				row[i] = r[i]
			}
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}

// loadCatalog validates the catalog section and fetches its entries.
func loadCatalog(ctx context.Context) ([]catalog.Entry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	src, err := cfg.CatalogSource()
	if err != nil {
		return nil, err
	}
	entries, err := src.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded", "type", cfg.Catalog.Type, "entries", len(entries))
	return entries, nil
}

func formatBytes(b int64) string {
	if b < 0 {
		return "-" + humanize.IBytes(uint64(-b))
	}
	return humanize.IBytes(uint64(b))
}

func formatScore(score float64) string {
	if score <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", score*100)
}

func truncKey(key string, max int) string {
	if len(key) <= max {
		return key
	}
	return "…" + key[len(key)-max+1:]
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
