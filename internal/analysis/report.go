package analysis

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"sjsage522/storecrawler/internal/robots"
)

// WriteMarkdown renders the crawlability report and the robots.txt digest.
func WriteMarkdown(w io.Writer, r Report, summary robots.Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawlability Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + r.URL + "`"},
			{"Checked", time.Now().Format("2006-01-02 15:04:05 MST")},
			{"Allowed by robots.txt", yesNo(r.Allowed)},
			{"JavaScript heavy", yesNo(r.JavaScriptHeavy)},
			{"Feeds found", strconv.Itoa(len(r.Feeds))},
			{"Score", "**" + strconv.Itoa(r.Score) + "/100**"},
		},
	})
	md.PlainText("")

	switch {
	case !r.Allowed:
		md.Cautionf("robots.txt does not allow crawling %s.", r.URL)
	case r.Score < 50:
		md.Warningf("Low crawlability score (%d/100).", r.Score)
	default:
		md.Tip("The site can be crawled with a plain fetcher.")
	}
	md.PlainText("")

	md.H2("Recommendations")
	md.PlainText("")
	md.BulletList(r.Recommendations...)
	md.PlainText("")

	if len(r.Feeds) > 0 {
		md.H2("Feeds")
		md.PlainText("")
		md.BulletList(r.Feeds...)
		md.PlainText("")
	}

	md.H2("robots.txt")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Rule", "Values"},
		Rows: [][]string{
			{"Allow", joinOrDash(summary.Allowed)},
			{"Disallow", joinOrDash(summary.Disallowed)},
			{"Crawl-delay", orDash(summary.CrawlDelay)},
			{"Sitemap", joinOrDash(summary.Sitemaps)},
		},
	})

	return md.Build()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	out := "`" + values[0] + "`"
	for _, v := range values[1:] {
		out += ", `" + v + "`"
	}
	return out
}
