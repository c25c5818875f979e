package scraper

import (
	"context"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

type helloasso struct{}

func (helloasso) name() string       { return "helloasso" }
func (helloasso) patterns() []string { return []string{"helloasso.com"} }

func (helloasso) links(ctx context.Context, sess browser.Session, d source.Descriptor) ([]string, error) {
	if err := sess.Navigate(ctx, d.URL); err != nil {
		return nil, err
	}
	if err := sess.ScrollToBottom(ctx); err != nil {
		return nil, err
	}
	clickIfPresent(ctx, sess, `button[data-ux="Explore_OrganizationPublicPage_Actions_ActionEvent_ShowAllActions"]`)
	return hrefs(ctx, sess, "a.ActionLink-Event")
}

func (helloasso) events(ctx context.Context, sess browser.Session, d source.Descriptor, link string) ([]normalize.RawEvent, error) {
	id := lastSegment(link)
	if id == "" {
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
	if raw.DateText, err = requireText(ctx, sess, "date", "span.CampaignHeader--Date"); err != nil {
		return nil, err
	}

	online := keywords.IsOnline(raw.Title)
	raw.Online = normalize.Bool(online)
	if !online {
		raw.LocationText, _ = text(ctx, sess, "section.CardAddress--Location")
	}

	if raw.Description, err = requireText(ctx, sess, "description", "div.CampaignHeader--Description"); err != nil {
		return nil, err
	}
	return []normalize.RawEvent{raw}, nil
}
