package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/segmenta-io/segmenta/internal/catalog"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print catalog statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogging(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer cleanup()

			loader := catalog.NewLoader(cfg.Catalog, cfg.Embeddings.Dimensions, logger)
			snap, _, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"total_variables": snap.Len(),
					"has_embeddings":  snap.HasEmbeddings(),
					"embedding_model": snap.EmbeddingModel(),
					"dimensions":      snap.Dimensions(),
					"by_category":     snap.CountBy(catalog.FacetCategory),
					"by_theme":        snap.CountBy(catalog.FacetTheme),
					"by_product":      snap.CountBy(catalog.FacetProduct),
					"by_domain":       snap.CountBy(catalog.FacetDomain),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Variables:   %d\n", snap.Len())
			fmt.Fprintf(out, "Embeddings:  %d (%s, %d dims)\n",
				len(snap.EmbeddedCodes()), snap.EmbeddingModel(), snap.Dimensions())
			printFacet(cmd, "Categories", snap.CountBy(catalog.FacetCategory))
			printFacet(cmd, "Themes", snap.CountBy(catalog.FacetTheme))
			printFacet(cmd, "Domains", snap.CountBy(catalog.FacetDomain))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
