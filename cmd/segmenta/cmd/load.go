package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/segmenta-io/segmenta/internal/catalog"
)

func newLoadCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "load [catalog-path]",
		Short: "Validate a catalog file and print facet counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Catalog.Path = args[0]
			}

			logger, cleanup, err := setupLogging(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer cleanup()

			loader := catalog.NewLoader(cfg.Catalog, cfg.Embeddings.Dimensions, logger)
			snap, stats, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"stats":       stats,
					"by_category": snap.CountBy(catalog.FacetCategory),
					"by_theme":    snap.CountBy(catalog.FacetTheme),
					"by_domain":   snap.CountBy(catalog.FacetDomain),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d variables from %s in %s\n", stats.Variables, stats.Source, stats.Elapsed)
			fmt.Fprintf(out, "  with embeddings: %d\n", stats.WithEmbedding)
			if stats.SkippedRows > 0 {
				fmt.Fprintf(out, "  skipped rows:    %d\n", stats.SkippedRows)
			}
			printFacet(cmd, "Categories", snap.CountBy(catalog.FacetCategory))
			printFacet(cmd, "Themes", snap.CountBy(catalog.FacetTheme))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printFacet(cmd *cobra.Command, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(out, "  %-30s %d\n", name, counts[name])
	}
}
