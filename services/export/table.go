package export

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/services/store"
)

const maxTitleWidth = 60

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderProducts prints products as a table with a total footer
func RenderProducts(w io.Writer, products []crawler.ProductRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Title", "Price", "Link"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxTitleWidth},
	})

	for i, p := range products {
		t.AppendRow(table.Row{i + 1, p.Title, p.Price, p.Link})
	}
	t.AppendFooter(table.Row{"", "Total", len(products), ""})
	t.Render()
}

// RenderSlider prints slider image URLs as a table
func RenderSlider(w io.Writer, images []string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Slider image"})

	for i, src := range images {
		t.AppendRow(table.Row{i + 1, src})
	}
	t.AppendFooter(table.Row{"Total", len(images)})
	t.Render()
}

// CatalogRow is one category line of a catalog run
type CatalogRow struct {
	Name     string
	URL      string
	Products int
	Err      error
}

// RenderCatalog prints one row per crawled category
func RenderCatalog(w io.Writer, rows []CatalogRow) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Category", "Products", "Status", "URL"})

	total := 0
	for _, r := range rows {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		total += r.Products
		t.AppendRow(table.Row{r.Name, r.Products, status, r.URL})
	}
	t.AppendFooter(table.Row{"Total", total, "", ""})
	t.Render()
}

// RenderRuns prints recorded runs
func RenderRuns(w io.Writer, runs []store.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Command", "Target", "Started", "Status", "Items"})

	for _, r := range runs {
		t.AppendRow(table.Row{r.ID, r.Command, r.Target, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.Items})
	}
	t.Render()
}
