package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"sjsage522/storecrawler/pkg/errors"
)

// AppName is used for the XDG config directory.
const AppName = "storecrawler"

// ListingSelectors locate product records on a listing page
type ListingSelectors struct {
	Container string `yaml:"container"`
	Item      string `yaml:"item"`
	Link      string `yaml:"link"`
	Price     string `yaml:"price"`
	Image     string `yaml:"image"`
}

// SliderSelectors locate slider images and the advance control
type SliderSelectors struct {
	Image          string `yaml:"image"`
	ImageAttr      string `yaml:"image_attr"`
	Background     string `yaml:"background"`
	BackgroundAttr string `yaml:"background_attr"`
	Next           string `yaml:"next"`
}

// Category is one listing page of the storefront
type Category struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// SiteProfile describes the storefront being crawled
type SiteProfile struct {
	Name       string           `yaml:"name"`
	BaseURL    string           `yaml:"base_url"`
	RobotsURL  string           `yaml:"robots_url"`
	SliderURL  string           `yaml:"slider_url"`
	PageParam  string           `yaml:"page_param"`
	Listing    ListingSelectors `yaml:"listing"`
	Slider     SliderSelectors  `yaml:"slider"`
	Categories []Category       `yaml:"categories"`
}

// DefaultProfile returns the built-in storefront profile
func DefaultProfile() *SiteProfile {
	return &SiteProfile{
		Name:      "dream2000",
		BaseURL:   "https://dream2000.com",
		PageParam: "p",
		Listing: ListingSelectors{
			Container: "ol.products.list.items.product-items",
			Item:      "li",
			Link:      "a.product-item-link",
			Price:     "span.price",
			Image: "div.product-item-info div.product-grid__image-wrapper a " +
				"span.product-image-container span.product-image-wrapper img",
		},
		Slider: SliderSelectors{
			Image:          "img.tp-rs-img",
			ImageAttr:      "src",
			Background:     "rs-sbg[data-lazyload]",
			BackgroundAttr: "data-lazyload",
			Next:           "rs-arrow.tp-rightarrow.tparrows.hesperiden",
		},
		Categories: []Category{
			{Name: "mobiles", Path: "/mobiles.html"},
			{Name: "tablets", Path: "/tablets.html"},
			{Name: "laptops", Path: "/laptop-notebook.html"},
			{Name: "accessories", Path: "/accessories.html"},
			{Name: "corporate", Path: "/corporate.html"},
			{Name: "home-appliances", Path: "/home-appliances.html"},
			{Name: "conditioners", Path: "/conditioners.html"},
			{Name: "tvs", Path: "/tvs/brands.html"},
			{Name: "fitness", Path: "/fitness.html"},
		},
	}
}

// DefaultProfilePath returns $XDG_CONFIG_HOME/storecrawler/site.yaml
func DefaultProfilePath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "site.yaml")
}

// LoadProfile reads a site profile from path. Fields missing from the file keep
// their built-in defaults. An empty path means DefaultProfilePath, and a missing
// default file yields the built-in profile.
func LoadProfile(path string) (*SiteProfile, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultProfilePath()
	}

	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return profile, profile.Validate()
		}
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to read site profile %s", path), err)
	}

	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to parse site profile %s", path), err)
	}

	return profile, profile.Validate()
}

// Validate checks that the profile can drive a crawl
func (p *SiteProfile) Validate() error {
	if p.BaseURL == "" {
		return errors.NewConfiguration("site profile base_url is required", nil)
	}
	if p.PageParam == "" {
		return errors.NewConfiguration("site profile page_param is required", nil)
	}
	if p.Listing.Container == "" || p.Listing.Item == "" || p.Listing.Link == "" {
		return errors.NewConfiguration("site profile listing selectors are incomplete", nil)
	}
	if p.Slider.Image == "" || p.Slider.Background == "" || p.Slider.Next == "" {
		return errors.NewConfiguration("site profile slider selectors are incomplete", nil)
	}
	return nil
}

// RobotsTxtURL returns the robots.txt location for the site
func (p *SiteProfile) RobotsTxtURL() string {
	if p.RobotsURL != "" {
		return p.RobotsURL
	}
	return strings.TrimRight(p.BaseURL, "/") + "/robots.txt"
}

// HomeURL returns the page carrying the image slider
func (p *SiteProfile) HomeURL() string {
	if p.SliderURL != "" {
		return p.SliderURL
	}
	return strings.TrimRight(p.BaseURL, "/") + "/"
}

// CategoryURL returns the listing URL of a category
func (p *SiteProfile) CategoryURL(c Category) string {
	if strings.HasPrefix(c.Path, "http://") || strings.HasPrefix(c.Path, "https://") {
		return c.Path
	}
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(c.Path, "/")
}

// FindCategory looks up a category by name
func (p *SiteProfile) FindCategory(name string) (Category, bool) {
	for _, c := range p.Categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}
