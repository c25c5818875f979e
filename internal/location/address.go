package location

import (
	"context"
	"fmt"
	"strings"
)

// Address is a fully resolved venue.
type Address struct {
	Name        string  `json:"location_name"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Department  string  `json:"department"`
	ZipCode     string  `json:"zip_code"`
	CountryCode string  `json:"country_code" validate:"omitempty,iso3166_1_alpha2"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Complete reports whether every field is populated.
func (a *Address) Complete() bool {
	if a == nil {
		return false
	}
	return a.Name != "" && a.Address != "" && a.City != "" && a.Department != "" &&
		a.ZipCode != "" && a.CountryCode != "" && (a.Latitude != 0 || a.Longitude != 0)
}

// Resolver turns a free-text location into an Address.
type Resolver interface {
	Resolve(ctx context.Context, text string) (*Address, error)
}

// UnresolvableError reports a location text no complete address matched.
type UnresolvableError struct {
	Text   string
	Reason string
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("location: cannot resolve %q: %s", e.Text, e.Reason)
}

// Department derives the French département code from a postcode:
// two digits, 2A/2B for Corsica, three digits overseas.
func Department(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) != 5 {
		return ""
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return ""
		}
	}
	switch {
	case strings.HasPrefix(zip, "20"):
		if zip < "20200" {
			return "2A"
		}
		return "2B"
	case strings.HasPrefix(zip, "97"), strings.HasPrefix(zip, "98"):
		return zip[:3]
	}
	return zip[:2]
}
