package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/etindell/bireme-research/internal/app"
	"github.com/etindell/bireme-research/internal/config"
	"github.com/etindell/bireme-research/internal/logging"
	"github.com/etindell/bireme-research/internal/ports"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bireme",
		Short:         "Bireme Research news ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFetchCmd())
	return root
}

func newFetchCmd() *cobra.Command {
	var (
		orgSlug     string
		companySlug string
		parallel    int
		dryRun      bool
		allStatuses bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch, classify, and store news for tracked companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level)

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			companies, err := application.Directory().ListCompanies(ctx, ports.CompanyFilter{
				OrganizationSlug: orgSlug,
				CompanySlug:      companySlug,
				AllStatuses:      allStatuses,
			})
			if err != nil {
				return fmt.Errorf("list companies: %w", err)
			}
			if len(companies) == 0 {
				cmd.Println("no companies found matching criteria")
				return nil
			}

			cmd.Printf("found %d companies to process\n", len(companies))

			if dryRun {
				for _, c := range companies {
					cmd.Printf("[dry run] would fetch news for %s (%s)\n", c.Name, c.Status)
				}
				return nil
			}

			if parallel <= 0 {
				parallel = cfg.News.MaxParallel
			}

			total, errs := application.Pipeline().RunMany(ctx, companies, parallel)
			for _, e := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
			}
			cmd.Printf("complete: %d new items stored\n", total)

			if len(errs) > 0 {
				return fmt.Errorf("%d of %d companies failed", len(errs), len(companies))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgSlug, "org", "", "organization slug (default: all organizations)")
	cmd.Flags().StringVar(&companySlug, "company", "", "fetch for this company slug only")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "max companies processed concurrently (default: from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list companies without fetching")
	cmd.Flags().BoolVar(&allStatuses, "all", false, "include companies outside the long/short books")

	return cmd
}
