// Package siteconfig describes the site being scraped: where listings live,
// how to find one item, how to read each field and how to page through
// results. A Configuration is built once at start-up and never modified.
package siteconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// PagePlaceholder is replaced by the page number in Pagination.Pattern.
const PagePlaceholder = "{page}"

// DefaultTemplatePath is where the template document is written.
const DefaultTemplatePath = "scraper_config.json"

// Configuration is the declarative description of one scrape.
type Configuration struct {
	BaseURL      string     `yaml:"base_url" json:"base_url"`
	ItemSelector string     `yaml:"item_selector" json:"item_selector"`
	Fields       FieldSet   `yaml:"fields" json:"fields"`
	Pagination   Pagination `yaml:"pagination" json:"pagination"`
	RateLimit    RateLimit  `yaml:"rate_limiting" json:"rate_limiting"`
	MaxItems     int        `yaml:"max_items" json:"max_items"`
}

// Pagination controls how pages after the first are addressed.
type Pagination struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	MaxPages int    `yaml:"max_pages" json:"max_pages"`
}

// RateLimit bounds, in seconds, of the pause taken before every request.
type RateLimit struct {
	DelayMin float64 `yaml:"delay_min" json:"delay_min"`
	DelayMax float64 `yaml:"delay_max" json:"delay_max"`
}

func (r RateLimit) Min() time.Duration { return seconds(r.DelayMin) }
func (r RateLimit) Max() time.Duration { return seconds(r.DelayMax) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Default is the configuration used when no document can be loaded. Its
// selectors cover common job-board markup; BaseURL is empty.
func Default() *Configuration {
	return &Configuration{
		BaseURL:      "",
		ItemSelector: "div.listing-item, .job-listing, .posting",
		Fields: MustFieldSet(
			Field{Name: "title", Rule: FieldRule{Selector: "h2, h3, .title, .job-title", Attribute: Text}},
			Field{Name: "company", Rule: FieldRule{Selector: ".company, .employer, .organization", Attribute: Text}},
			Field{Name: "location", Rule: FieldRule{Selector: ".location, .city, .place", Attribute: Text}},
			Field{Name: "description", Rule: FieldRule{Selector: ".description, .summary, .details", Attribute: Text}},
			Field{Name: "link", Rule: FieldRule{Selector: "a", Attribute: Href}},
			Field{Name: "date", Rule: FieldRule{Selector: ".date, .posted, .timestamp", Attribute: Text}},
		),
		Pagination: Pagination{
			Enabled:  true,
			Pattern:  "?page=" + PagePlaceholder,
			MaxPages: 100,
		},
		RateLimit: RateLimit{DelayMin: 0.5, DelayMax: 1.0},
		MaxItems:  5000,
	}
}

// Template is the example document handed to operators as a starting point.
func Template() *Configuration {
	return &Configuration{
		BaseURL:      "https://example.com/jobs",
		ItemSelector: "div.job-item, .listing",
		Fields: MustFieldSet(
			Field{Name: "title", Rule: FieldRule{Selector: "h2.title, .job-title", Attribute: Text}},
			Field{Name: "company", Rule: FieldRule{Selector: ".company-name", Attribute: Text}},
			Field{Name: "location", Rule: FieldRule{Selector: ".location", Attribute: Text}},
			Field{Name: "description", Rule: FieldRule{Selector: ".description", Attribute: Text}},
			Field{Name: "link", Rule: FieldRule{Selector: "a.title", Attribute: Href}},
			Field{Name: "date", Rule: FieldRule{Selector: ".date-posted", Attribute: Text}},
		),
		Pagination: Pagination{
			Enabled:  true,
			Pattern:  "?page=" + PagePlaceholder,
			MaxPages: 100,
		},
		RateLimit: RateLimit{DelayMin: 0.5, DelayMax: 1.0},
		MaxItems:  5000,
	}
}

// WriteTemplate writes the template document as indented JSON.
func WriteTemplate(path string) error {
	if path == "" {
		path = DefaultTemplatePath
	}
	data, err := json.MarshalIndent(Template(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

// Load reads a configuration document. It always returns a usable
// configuration: when the file cannot be read, parsed or validated the
// built-in Default is returned together with the error, and the caller is
// expected to log it and carry on. Keys missing from the document keep their
// default values.
func Load(path string) (*Configuration, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a JSON or YAML document on top of the defaults. ext is a
// file extension hint; JSON is also detected from the content.
func Parse(data []byte, ext string) (*Configuration, error) {
	cfg := Default()
	trimmed := bytes.TrimSpace(data)

	switch {
	case strings.EqualFold(ext, ".json"), bytes.HasPrefix(trimmed, []byte("{")):
		if err := json.Unmarshal(trimmed, cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Validate checks the invariants every run relies on.
func (c *Configuration) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url must not be empty"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || !u.IsAbs() {
		errs = append(errs, fmt.Errorf("base_url %q must be an absolute URL", c.BaseURL))
	}

	if c.ItemSelector == "" {
		errs = append(errs, errors.New("item_selector must not be empty"))
	} else if _, err := cascadia.ParseGroup(c.ItemSelector); err != nil {
		errs = append(errs, fmt.Errorf("item_selector %q: %w", c.ItemSelector, err))
	}

	if c.Fields.Len() == 0 {
		errs = append(errs, errors.New("at least one field is required"))
	}

	if c.Pagination.MaxPages < 1 {
		errs = append(errs, errors.New("pagination.max_pages must be at least 1"))
	}
	if c.Pagination.Enabled && !strings.Contains(c.Pagination.Pattern, PagePlaceholder) {
		errs = append(errs, fmt.Errorf("pagination.pattern must contain %s", PagePlaceholder))
	}

	if c.RateLimit.DelayMin < 0 {
		errs = append(errs, errors.New("rate_limiting.delay_min must not be negative"))
	}
	if c.RateLimit.DelayMax < c.RateLimit.DelayMin {
		errs = append(errs, errors.New("rate_limiting.delay_max must not be less than delay_min"))
	}

	if c.MaxItems < 1 {
		errs = append(errs, errors.New("max_items must be at least 1"))
	}

	return errors.Join(errs...)
}
