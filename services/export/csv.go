package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/pkg/errors"
)

var (
	productHeader = []string{"title", "link", "price", "image_url"}
	sliderHeader  = []string{"slider_image_url"}
)

// WriteProductsCSV writes products with a title,link,price,image_url header
func WriteProductsCSV(w io.Writer, products []crawler.ProductRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(productHeader); err != nil {
		return err
	}
	for _, p := range products {
		if err := cw.Write([]string{p.Title, p.Link, p.Price, p.ImageURL}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSliderCSV writes one slider image URL per row
func WriteSliderCSV(w io.Writer, images []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sliderHeader); err != nil {
		return err
	}
	for _, src := range images {
		if err := cw.Write([]string{src}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path, including missing directories, and fills it with write.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewStorage(fmt.Sprintf("failed to create %s", dir), err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.NewStorage(fmt.Sprintf("failed to create %s", path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.NewStorage(fmt.Sprintf("failed to close %s", path), cerr)
		}
	}()

	if err := write(f); err != nil {
		return errors.NewStorage(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}
