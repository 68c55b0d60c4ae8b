package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sjsage522/storecrawler/internal/analysis"
	"sjsage522/storecrawler/pkg/errors"
	"sjsage522/storecrawler/services/export"
)

func newRobotsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "robots",
		Short: "Print the robots.txt summary of the site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.Oracle.Reachable() {
				fmt.Fprintf(app.out, "%s could not be fetched; everything is allowed\n", app.Oracle.URL())
			}
			fmt.Fprint(app.out, app.Oracle.Summary().String())
			return nil
		},
	}
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <url>",
		Short: "Tell whether the configured user agent may crawl a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ua := app.Config.UserAgent
			if app.Oracle.Allowed(args[0], ua) {
				fmt.Fprintf(app.out, "allowed: %s may crawl %s\n", ua, args[0])
			} else {
				fmt.Fprintf(app.out, "disallowed: %s may not crawl %s\n", ua, args[0])
			}
			if d := app.Oracle.CrawlDelay(ua); d > 0 {
				fmt.Fprintf(app.out, "crawl-delay: %s\n", d)
			}
			return nil
		},
	}
}

func newAnalyzeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [url]",
		Short: "Print a crawlability report as Markdown",
		Long: `analyze checks robots.txt permission, whether the page needs JavaScript to
show its content and which feed or API endpoints answer, then scores how easy
the site is to crawl. The site root is analysed when no URL is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := app.Profile.HomeURL()
			if len(args) == 1 {
				target = args[0]
			}

			return app.Record(cmd.Context(), "analyze", target, func(int64) error {
				a := analysis.NewAnalyzer(app.Fetcher, app.Oracle, app.Config.UserAgent)
				report, err := a.Analyze(cmd.Context(), target)
				if err != nil {
					return err
				}
				return analysis.WriteMarkdown(app.out, report, app.Oracle.Summary())
			})
		},
	}
}

func newRunsCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the results database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.Store == nil {
				return errors.NewConfiguration("no results database: pass --db or set DATABASE_PATH", nil)
			}
			runs, err := app.Store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			export.RenderRuns(app.out, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}
