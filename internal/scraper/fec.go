package scraper

import (
	"context"
	"strings"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

// fec reads the Wix event pages of the Fresque de l'Économie Circulaire.
type fec struct{}

func (fec) name() string       { return "fec" }
func (fec) patterns() []string { return []string{"lafresquedeleconomiecirculaire.com"} }

// links keeps only cards pointing at the site itself; partners' events are
// listed too, with their own ticketing.
func (fec) links(ctx context.Context, sess browser.Session, d source.Descriptor) ([]string, error) {
	if err := sess.Navigate(ctx, d.URL); err != nil {
		return nil, err
	}
	loadMore(ctx, sess, `button[data-hook="load-more-button"]`, 1)

	all, err := hrefs(ctx, sess, `li[data-hook="events-card"] a[data-hook="title"]`)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range all {
		if sameHost(l, sess.CurrentURL()) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (fec) events(ctx context.Context, sess browser.Session, d source.Descriptor, link string) ([]normalize.RawEvent, error) {
	_, id, ok := strings.Cut(link, "/event-details/")
	id = strings.Trim(id, "/")
	if !ok || id == "" {
		return nil, missingField("uuid")
	}

	raw := baseEvent(d, link)
	raw.EventID = id
	raw.TicketsLink = link
	raw.RequireDescription = true

	var err error
	if raw.Title, err = requireText(ctx, sess, "title", "h1"); err != nil {
		return nil, err
	}
	raw.KidsText = raw.Title
	if raw.DateText, err = requireText(ctx, sess, "date", `p[data-hook="event-full-date"]`); err != nil {
		return nil, err
	}

	where, _ := text(ctx, sess, `p[data-hook="event-full-location"]`)
	online := keywords.IsOnline(where)
	raw.Online = normalize.Bool(online)
	if !online {
		raw.LocationText = where
	}

	clickIfPresent(ctx, sess, `button[data-hook="about-section-button"]`)
	if raw.Description, err = requireText(ctx, sess, "description",
		`div[data-hook="about-section-text"]`,
		`div[data-hook="about-section"]`,
	); err != nil {
		return nil, err
	}

	_, soldOutErr := sess.Find(ctx, `div[data-hook="event-sold-out"]`)
	raw.SoldOut = soldOutErr == nil
	return []normalize.RawEvent{raw}, nil
}
