// Package language resolves the ISO 639-1 code of a workshop, either from an
// explicit label on the page or from its title and description.
package language

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// DefaultSupported is the allowlist used when none is configured.
var DefaultSupported = []string{"fr", "en", "de", "es", "it", "ru", "nl", "pt"}

// UnrecognizedLanguageError reports a language label with no known code.
type UnrecognizedLanguageError struct {
	Label string
}

func (e *UnrecognizedLanguageError) Error() string {
	return fmt.Sprintf("language: unrecognized language %q", e.Label)
}

type marker struct {
	pattern *regexp.Regexp
	code    string
}

func word(w string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\p{L}])` + regexp.QuoteMeta(w) + `($|[^\p{L}])`)
}

// titleMarkers is scanned in order and the first hit wins. Order only
// matters when one marker contains another. Country tags such as "(NL)"
// name a place, not a language, and are not markers.
var titleMarkers = []marker{
	{word("(RU)"), "ru"},
	{word("Russian"), "ru"},
	{word("Russe"), "ru"},
	{word("English"), "en"},
	{word("Anglais"), "en"},
	{word("Englisch"), "en"},
	{word("Französisch"), "fr"},
	{word("Français"), "fr"},
	{word("Francais"), "fr"},
	{word("French"), "fr"},
	{word("Deutsch"), "de"},
	{word("German"), "de"},
	{word("Allemand"), "de"},
	{word("Italiano"), "it"},
	{word("Italian"), "it"},
	{word("Italien"), "it"},
	{word("Español"), "es"},
	{word("Spanish"), "es"},
	{word("Espagnol"), "es"},
	{word("Nederlands"), "nl"},
	{word("Dutch"), "nl"},
	{word("Português"), "pt"},
	{word("Portuguese"), "pt"},
}

// namedLanguages maps the labels listing sites print next to a language
// icon. Lookups are exact after trimming and NFC normalization.
var namedLanguages = map[string]string{
	"Allemand":    "de",
	"Anglais":     "en",
	"Deutsch":     "de",
	"Englisch":    "en",
	"English":     "en",
	"Französisch": "fr",
	"Français":    "fr",
	"German":      "de",
}

// Detector resolves language codes against an allowlist.
type Detector struct {
	supported map[string]bool
}

// NewDetector creates a Detector. An empty list means DefaultSupported.
func NewDetector(supported []string) *Detector {
	if len(supported) == 0 {
		supported = DefaultSupported
	}
	d := &Detector{supported: make(map[string]bool, len(supported))}
	for _, c := range supported {
		d.supported[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return d
}

// Supported reports whether code is in the allowlist.
func (d *Detector) Supported(code string) bool {
	return d.supported[code]
}

// Detect returns the title's explicit language marker if any, otherwise the
// statistically detected language of title and description. It returns nil
// when the detected language is not supported.
func (d *Detector) Detect(title, description string) *string {
	title = norm.NFC.String(title)
	for _, m := range titleMarkers {
		if m.pattern.MatchString(title) {
			code := m.code
			return &code
		}
	}

	info := whatlanggo.Detect(strings.TrimSpace(title + " " + description))
	code := info.Lang.Iso6391()
	if !d.supported[code] {
		zap.L().Warn("unsupported language detected",
			zap.String("title", title),
			zap.String("code", code),
			zap.Float64("confidence", info.Confidence),
		)
		return nil
	}
	return &code
}

// ResolveNamedLanguage maps an explicit UI language label to its code and
// fails rather than guessing.
func ResolveNamedLanguage(label string) (string, error) {
	text := strings.TrimSpace(norm.NFC.String(label))
	if i := strings.LastIndex(text, ":"); i >= 0 {
		text = strings.TrimSpace(text[i+1:])
	}
	if code, ok := namedLanguages[text]; ok {
		return code, nil
	}
	return "", &UnrecognizedLanguageError{Label: label}
}
