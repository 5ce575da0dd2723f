package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"feedstream/aggregator/internal/app"
	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/keywords"
)

var (
	topFormat string
	topLimit  int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the most searched keywords",
	RunE:  topAction,
}

func init() {
	topCmd.Flags().StringVar(&topFormat, "format", "terminal", "output format: terminal, json")
	topCmd.Flags().IntVar(&topLimit, "limit", 10, "number of keywords to show (0 = all)")
	rootCmd.AddCommand(topCmd)
}

func topAction(cmd *cobra.Command, _ []string) error {
	cfg := app.LoadConfig()
	ctx := cmd.Context()
	logger := cliLogger()

	redisClient := app.ConnectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	store, closeStore := app.BuildKeywordStore(ctx, cfg, redisClient, logger)
	defer closeStore()

	ranked := keywords.NewTracker(store, keywords.WithLogger(logger)).Ranked(ctx)
	if topLimit > 0 && len(ranked) > topLimit {
		ranked = ranked[:topLimit]
	}

	out := cmd.OutOrStdout()
	switch topFormat {
	case "json":
		return printTopJSON(out, ranked)
	case "terminal", "":
		printTop(out, ranked)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", topFormat)
	}
}

func printTopJSON(w io.Writer, ranked []domain.KeywordCount) error {
	if ranked == nil {
		ranked = []domain.KeywordCount{}
	}
	return json.NewEncoder(w).Encode(map[string]any{"keywords": ranked})
}

func printTop(w io.Writer, ranked []domain.KeywordCount) {
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No keywords recorded yet. Run 'feedctl search <keyword>' first.")
		return
	}
	for i, entry := range ranked {
		fmt.Fprintf(w, "%3d. %-30s %s\n", i+1, entry.Keyword, humanize.Comma(int64(entry.Count)))
	}
}
