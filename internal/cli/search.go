package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"feedstream/aggregator/internal/app"
	"feedstream/aggregator/internal/domain"
)

var (
	searchFormat   string
	searchCategory string
	searchLimit    int
	searchTimeout  time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Aggregate results for a keyword across every source",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchAction,
}

func init() {
	searchCmd.Flags().StringVar(&searchFormat, "format", "terminal", "output format: terminal, json")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only show one category")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "records per category in terminal output (0 = all)")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 30*time.Second, "overall deadline")
	rootCmd.AddCommand(searchCmd)
}

func searchAction(cmd *cobra.Command, args []string) error {
	keyword := strings.TrimSpace(strings.Join(args, " "))
	if keyword == "" {
		return fmt.Errorf("keyword is required")
	}
	var only domain.Category
	if searchCategory != "" {
		category, ok := domain.NormalizeCategory(searchCategory)
		if !ok {
			return fmt.Errorf("unknown category %q", searchCategory)
		}
		only = category
	}

	cfg := app.LoadConfig()
	sources, err := loadSources(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
	defer cancel()

	runtime := app.Build(ctx, cfg, sources, cliLogger())
	defer runtime.Close()

	response, err := runtime.Service.HandleSearch(ctx, keyword)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if only != "" {
		response.Results = domain.AggregateResultSet{only: response.Results[only]}
		response.TotalCount = len(response.Results[only])
	}

	out := cmd.OutOrStdout()
	switch searchFormat {
	case "json":
		return printSearchJSON(out, response)
	case "terminal", "":
		printSearch(out, response, time.Now(), searchLimit)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", searchFormat)
	}
}

func loadSources(cfg app.Config) (app.Sources, error) {
	path := cfg.SourcesFile
	if sourcesPath != "" {
		path = sourcesPath
	}
	sources, err := app.LoadSources(path)
	if err != nil {
		return app.Sources{}, fmt.Errorf("load sources: %w", err)
	}
	return sources, nil
}

func printSearchJSON(w io.Writer, response domain.SearchResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}

func printSearch(w io.Writer, response domain.SearchResponse, now time.Time, limit int) {
	fmt.Fprintf(w, "%q: %s results in %s\n", response.Keyword,
		humanize.Comma(int64(response.TotalCount)),
		time.Duration(response.ElapsedMS)*time.Millisecond)

	for _, category := range domain.Categories() {
		records, ok := response.Results[category]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d)\n", strings.ToUpper(string(category)), len(records))
		if len(records) == 0 {
			fmt.Fprintln(w, "  (none)")
			continue
		}
		shown := records
		if limit > 0 && len(shown) > limit {
			shown = shown[:limit]
		}
		for _, record := range shown {
			fmt.Fprintf(w, "  %-12s %s\n", publishedLabel(record, now), record.Title)
			fmt.Fprintf(w, "  %-12s %s\n", "", record.Link)
		}
		if hidden := len(records) - len(shown); hidden > 0 {
			fmt.Fprintf(w, "  ... %d more\n", hidden)
		}
	}

	degraded := make([]string, 0)
	for _, status := range response.Sources {
		if status.Outcome == domain.OutcomeSuccess || status.Outcome == domain.OutcomeEmpty {
			continue
		}
		degraded = append(degraded, fmt.Sprintf("%s[%s]", status.Name, status.Outcome))
	}
	if len(degraded) > 0 {
		fmt.Fprintf(w, "\ndegraded sources: %s\n", strings.Join(degraded, ", "))
	}
	if len(response.TopKeywords) > 0 {
		fmt.Fprintf(w, "trending: %s\n", strings.Join(response.TopKeywords, ", "))
	}
}

func publishedLabel(record domain.Record, now time.Time) string {
	if !record.HasPublished() {
		return "undated"
	}
	return humanize.RelTime(record.Published, now, "ago", "from now")
}
