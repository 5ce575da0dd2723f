package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"feedstream/aggregator/internal/app"
	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/search"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the sources enabled by the current configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := app.LoadConfig()
		sources, err := loadSources(cfg)
		if err != nil {
			return err
		}
		service := search.NewService(app.BuildAdapters(cfg, sources, cliLogger()), cfg.RequestTimeout)
		printSources(cmd.OutOrStdout(), service.Sources(), len(sources.Feeds))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func printSources(w io.Writer, infos []domain.SourceInfo, feeds int) {
	for _, info := range infos {
		fmt.Fprintf(w, "%-14s %-8s %s\n", info.Name, info.Category, info.Label)
	}
	if feeds > 0 {
		fmt.Fprintf(w, "\n%d custom feeds from sources file\n", feeds)
	}
}
