package cli

import (
	"github.com/spf13/cobra"

	"github.com/mlsafety/cegarete/pkg/cache"
	"github.com/mlsafety/cegarete/pkg/config"
)

// NewCacheCmd creates the cache command group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached bundles and kept query files",
	}

	cmd.AddCommand(newCacheInfoCmd(), newCacheCleanCmd())

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache contents and sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			info, err := newCacheManager(cfg).GetInfo()
			if err != nil {
				return err
			}
			cmd.Printf("Bundles: %s (%d files) in %s\n",
				cache.FormatBytes(info.BundleSize), info.BundleFiles, info.BundleDir)
			cmd.Printf("Queries: %s (%d files) in %s\n",
				cache.FormatBytes(info.QuerySize), info.QueryFiles, info.QueryDir)
			cmd.Printf("Total:   %s\n", cache.FormatBytes(info.TotalSize))
			return nil
		},
	}
}

func newCacheCleanCmd() *cobra.Command {
	var (
		bundles bool
		queries bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove cached files",
		Long:  "Remove cached files. Without flags both bundles and kept queries are removed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, err := newCacheManager(cfg).Clean(cache.CleanOptions{
				Bundles: bundles,
				Queries: queries,
			})
			if err != nil {
				return err
			}
			if result.TotalFreed == 0 {
				cmd.Println("Nothing to clean")
				return nil
			}
			cmd.Printf("Freed %s\n", cache.FormatBytes(result.TotalFreed))
			if result.BundleFreed > 0 {
				cmd.Printf("  bundles: %s\n", cache.FormatBytes(result.BundleFreed))
			}
			if result.QueryFreed > 0 {
				cmd.Printf("  queries: %s\n", cache.FormatBytes(result.QueryFreed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&bundles, "bundles", false, "Clean downloaded engine bundles")
	cmd.Flags().BoolVar(&queries, "queries", false, "Clean kept solver query files")

	return cmd
}

func newCacheManager(cfg *config.Config) *cache.Manager {
	return cache.New(cfg.Settings.BundleCacheDir, cfg.Settings.QueryCacheDir)
}
