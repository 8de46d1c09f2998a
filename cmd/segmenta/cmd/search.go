package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/profiling"
	"github.com/segmenta-io/segmenta/internal/query"
	"github.com/segmenta-io/segmenta/internal/search"
)

// newSearchCmd builds the one-shot smoke-test search. It runs the
// keyword path only so it works offline against any catalog file.
func newSearchCmd() *cobra.Command {
	var topK int
	var cpuProfile, heapProfile string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot keyword search against the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogging(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer cleanup()

			prof, err := profiling.Start(cpuProfile, heapProfile)
			if err != nil {
				return err
			}

			loader := catalog.NewLoader(cfg.Catalog, cfg.Embeddings.Dimensions, logger)
			snap, _, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}
			set, err := search.BuildIndexSet(snap, cfg.Search.BruteForceThreshold)
			if err != nil {
				return err
			}
			defer set.Close()

			engine := search.NewEngine(cfg.Search, cfg.Similarity, nil, logger)
			engine.Swap(set)

			processor := query.NewProcessor(cfg.Query, query.WithLogger(logger))
			raw := strings.Join(args, " ")
			q := processor.Process(cmd.Context(), raw, snap.Lexicon())

			res, err := engine.Search(cmd.Context(), q, search.Options{
				TopK:       topK,
				UseKeyword: true,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d results for %q\n", len(res.Candidates), res.TotalFound, q.Normalized)
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			for i, c := range res.Candidates {
				fmt.Fprintf(out, "%3d. %-20s %-40s %.3f\n", i+1, c.Code, c.Name, c.Fused)
			}

			if err := prof.Stop(); err != nil {
				return err
			}
			if cpuProfile != "" || heapProfile != "" {
				fmt.Fprintf(out, "heap in use: %s\n", profiling.FormatBytes(profiling.HeapInUse()))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 20, "Maximum results to print")
	cmd.Flags().StringVar(&cpuProfile, "cpu-profile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&heapProfile, "heap-profile", "", "Write a heap profile to this file")
	return cmd
}
