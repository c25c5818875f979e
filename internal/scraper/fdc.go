package scraper

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
	"github.com/trouver-une-fresque/fresk-scraper/internal/language"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// maxPages bounds listing pagination.
const maxPages = 50

// fdc reads the Fresque du Climat workshop platform, embedded in an iframe
// on the association pages.
type fdc struct{}

func (fdc) name() string { return "fdc" }
func (fdc) patterns() []string {
	return []string{"climatefresk.org", "fresqueduclimat.org"}
}

func (fdc) links(ctx context.Context, sess browser.Session, d source.Descriptor) ([]string, error) {
	if err := sess.Navigate(ctx, d.URL); err != nil {
		return nil, err
	}
	if err := openFrame(ctx, sess, "iframe"); err != nil {
		return nil, err
	}

	var out []string
	seen := map[string]bool{}
	visited := map[string]bool{sess.CurrentURL(): true}
	for page := 0; page < maxPages; page++ {
		links, err := hrefs(ctx, sess, "a.link-dark")
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}

		next := nextPage(ctx, sess)
		if next == "" || visited[next] {
			break
		}
		visited[next] = true
		if err := sess.Navigate(ctx, next); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// nextPage returns the "Suivant" pagination link, if any.
func nextPage(ctx context.Context, sess browser.Session) string {
	els, err := sess.FindAll(ctx, "a.page-link")
	if err != nil {
		return ""
	}
	for _, el := range els {
		if !strings.Contains(el.Text(), "Suivant") || el.Attr("href") == "" {
			continue
		}
		abs, err := browser.Resolve(sess.CurrentURL(), el.Attr("href"))
		if err != nil {
			return ""
		}
		return abs
	}
	return ""
}

func (fdc) events(ctx context.Context, sess browser.Session, d source.Descriptor, link string) ([]normalize.RawEvent, error) {
	uuid := uuidPattern.FindString(link)
	if uuid == "" {
		return nil, missingField("uuid")
	}

	raw := baseEvent(d, link)
	raw.EventID = uuid

	var err error
	if raw.Title, err = requireText(ctx, sess, "title", "h3"); err != nil {
		return nil, err
	}
	clock, err := sess.Find(ctx, ".fa-clock")
	if err != nil {
		return nil, missingField("date")
	}
	raw.DateText = clock.Parent().Text()

	raw.LanguageCode = "fr"
	if globe, err := sess.Find(ctx, "div.mb-3 > i.fa-globe"); err != nil {
		zap.L().Warn("unable to find workshop language, assuming french", zap.String("link", link))
	} else if code, err := language.ResolveNamedLanguage(globe.Parent().Text()); err != nil {
		zap.L().Warn("assuming workshop language is french", zap.String("link", link), zap.Error(err))
	} else {
		raw.LanguageCode = code
	}

	_, videoErr := sess.Find(ctx, ".fa-video")
	online := videoErr == nil
	raw.Online = normalize.Bool(online)
	if !online {
		pin, err := sess.Find(ctx, ".fa-map-pin")
		if err != nil {
			return nil, missingField("location")
		}
		raw.LocationText = pin.Parent().Text()
	}

	strongs, err := sess.FindAll(ctx, "strong")
	if err != nil {
		return nil, err
	}
	found := false
	for _, s := range strongs {
		if strings.TrimSpace(s.Text()) == "Description" {
			raw.Description = s.Parent().Text()
			found = true
			break
		}
	}
	if !found {
		return nil, missingField("description")
	}
	raw.KidsText = raw.Description

	user, err := sess.Find(ctx, ".fa-user")
	if err != nil {
		return nil, missingField("tickets_link")
	}
	raw.SoldOut = keywords.IsSoldOut(user.Parent().Parent().Text())
	if href := user.Parent().Attr("href"); href != "" {
		if abs, err := browser.Resolve(sess.CurrentURL(), href); err == nil {
			raw.TicketsLink = abs
		}
	}
	return []normalize.RawEvent{raw}, nil
}
