package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the storecrawler command tree around app
func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storecrawler",
		Short: "Polite crawler for a single e-commerce storefront",
		Long: `storecrawler reads product listings and the homepage image slider of one
storefront, described by a site profile. Every crawl is checked against the
site's robots.txt first and paced by the configured delay or the Crawl-delay
of robots.txt, whichever is longer.

Configuration comes from the environment (and an optional .env file), the
site profile from --profile, SITE_PROFILE or $XDG_CONFIG_HOME/storecrawler/site.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.Setup(cmd.Context())
		},
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.flags.profile, "profile", "", "Site profile YAML file")
	flags.StringVar(&app.flags.csvDir, "csv-dir", "", "Also write CSV files into this directory")
	flags.BoolVar(&app.flags.publish, "publish", false, "Publish results to the Redis streams at REDIS_ADDR")
	flags.StringVar(&app.flags.db, "db", "", "Record results in this SQLite database (default DATABASE_PATH)")

	cmd.AddCommand(newRobotsCmd(app))
	cmd.AddCommand(newCheckCmd(app))
	cmd.AddCommand(newProductsCmd(app))
	cmd.AddCommand(newCatalogCmd(app))
	cmd.AddCommand(newSliderCmd(app))
	cmd.AddCommand(newAnalyzeCmd(app))
	cmd.AddCommand(newRunsCmd(app))

	return cmd
}
