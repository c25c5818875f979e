// Package source loads the per-country source lists and routes each source
// to the adapter that knows how to read it.
package source

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Kind distinguishes browser-driven sources from feeds and APIs.
type Kind string

const (
	KindAPI     Kind = "api"
	KindScraper Kind = "scraper"
)

// ID is a source identifier. Country files write it as a number or a string.
type ID string

// UnmarshalJSON accepts 200 and "200".
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "source: id must be a string or a number")
	}
	*id = ID(n.String())
	return nil
}

// Descriptor is one entry of a country file.
type Descriptor struct {
	ID           ID     `json:"id" yaml:"id" validate:"required"`
	Name         string `json:"name" yaml:"name" validate:"required"`
	URL          string `json:"url" yaml:"url" validate:"required,url"`
	Type         Kind   `json:"type" yaml:"type" validate:"required,oneof=api scraper"`
	LanguageCode string `json:"language_code,omitempty" yaml:"language_code,omitempty" validate:"omitempty,len=2"`
	Filter       string `json:"filter,omitempty" yaml:"filter,omitempty"`
	Iframe       string `json:"iframe,omitempty" yaml:"iframe,omitempty"`
	SkipPast     *bool  `json:"skip_past,omitempty" yaml:"skip_past,omitempty"`
}

// String identifies the descriptor in logs.
func (d Descriptor) String() string {
	return string(d.ID) + " " + strconv.Quote(d.Name)
}

var validate = validator.New()

// Parse decodes and validates a source list. format is "json" or "yaml".
func Parse(data []byte, format string) ([]Descriptor, error) {
	var descs []Descriptor
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &descs); err != nil {
			return nil, eris.Wrap(err, "source: decode yaml")
		}
	default:
		if err := json.Unmarshal(data, &descs); err != nil {
			return nil, eris.Wrap(err, "source: decode json")
		}
	}

	for i, d := range descs {
		if err := validate.Struct(d); err != nil {
			return nil, eris.Wrapf(err, "source: entry %d (%s) invalid", i, d.Name)
		}
	}
	return descs, nil
}

// Load reads a source list from path; the extension selects the format.
func Load(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}
	return Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// LoadCountry reads dir/<country>.json, falling back to .yaml.
func LoadCountry(dir, country string) ([]Descriptor, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, country+ext)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, eris.Errorf("source: no source file for country %q in %s", country, dir)
}

// Split separates browser-driven sources from feeds and APIs.
func Split(descs []Descriptor) (scrapers, apis []Descriptor) {
	for _, d := range descs {
		switch d.Type {
		case KindScraper:
			scrapers = append(scrapers, d)
		case KindAPI:
			apis = append(apis, d)
		}
	}
	return scrapers, apis
}
