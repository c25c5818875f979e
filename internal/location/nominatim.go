package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "fresk-scraper/1.0 (trouverunefresque.org)"
)

// Nominatim resolves locations with the OpenStreetMap search API.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Nominatim client.
type Option func(*Nominatim)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(n *Nominatim) { n.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header. The public instance requires one.
func WithUserAgent(ua string) Option {
	return func(n *Nominatim) { n.userAgent = ua }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Nominatim) { n.httpClient = c }
}

// WithInterval sets the minimum delay between requests. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(n *Nominatim) {
		if d <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewNominatim creates a client limited to one request per second.
func NewNominatim(opts ...Option) *Nominatim {
	n := &Nominatim{
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Place is one search hit.
type Place struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Lat         string       `json:"lat"`
	Lon         string       `json:"lon"`
	Address     PlaceAddress `json:"address"`
}

// PlaceAddress is the addressdetails block of a hit.
type PlaceAddress struct {
	Amenity      string `json:"amenity"`
	Building     string `json:"building"`
	HouseNumber  string `json:"house_number"`
	Road         string `json:"road"`
	Pedestrian   string `json:"pedestrian"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	County       string `json:"county"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	CountryCode  string `json:"country_code"`
}

// Search queries the geocoder.
func (n *Nominatim) Search(ctx context.Context, query string) ([]Place, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit wait")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "5")
	reqURL := fmt.Sprintf("%s/search?%s", n.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: create request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept-Language", "fr")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: search")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nominatim: unexpected status %d", resp.StatusCode)
	}

	var places []Place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, eris.Wrap(err, "nominatim: decode response")
	}
	return places, nil
}

// Resolve tries the whole text, then the text without its first line
// (listing sites often print the venue name above the street address).
func (n *Nominatim) Resolve(ctx context.Context, text string) (*Address, error) {
	queries := candidates(text)
	if len(queries) == 0 {
		return nil, &UnresolvableError{Text: text, Reason: "empty location"}
	}

	for _, q := range queries {
		places, err := n.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, p := range places {
			addr := p.toAddress(firstLine(text))
			if addr.Complete() {
				return addr, nil
			}
			zap.L().Debug("incomplete geocoder hit",
				zap.String("query", q),
				zap.String("display_name", p.DisplayName),
			)
		}
	}
	return nil, &UnresolvableError{Text: text, Reason: "no complete match"}
}

func (p Place) toAddress(fallbackName string) *Address {
	a := p.Address
	lat, _ := strconv.ParseFloat(p.Lat, 64)
	lon, _ := strconv.ParseFloat(p.Lon, 64)

	street := a.Road
	if street == "" {
		street = a.Pedestrian
	}
	if street != "" && a.HouseNumber != "" {
		street = a.HouseNumber + " " + street
	}

	name := firstNonEmpty(p.Name, a.Amenity, a.Building, fallbackName, street)

	country := strings.ToUpper(a.CountryCode)
	department := ""
	if country == "FR" {
		department = Department(a.Postcode)
	}
	if department == "" {
		department = firstNonEmpty(a.State, a.County)
	}

	return &Address{
		Name:        name,
		Address:     street,
		City:        firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		Department:  department,
		ZipCode:     a.Postcode,
		CountryCode: country,
		Latitude:    lat,
		Longitude:   lon,
	}
}

func candidates(text string) []string {
	var out []string
	full := collapse(text)
	if full != "" {
		out = append(out, full)
	}
	if i := strings.Index(text, "\n"); i >= 0 {
		if rest := collapse(text[i+1:]); rest != "" && rest != full {
			out = append(out, rest)
		}
	}
	return out
}

func firstLine(text string) string {
	if i := strings.Index(text, "\n"); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
