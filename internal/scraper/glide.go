package scraper

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

const (
	glideItem = `div.collection-item[role="button"]`
	glideNext = `button[aria-label="Next"]`
)

// glide reads Glide apps. Collection items carry no links: each one is
// clicked, its detail URL recorded, then the listing restored with Back.
// The descriptor's filter names the tab holding the workshops.
type glide struct{}

func (glide) name() string       { return "glide" }
func (glide) patterns() []string { return []string{"glide.page"} }

func (glide) links(ctx context.Context, sess browser.Session, d source.Descriptor) ([]string, error) {
	if err := sess.Navigate(ctx, d.URL); err != nil {
		return nil, err
	}
	if d.Filter != "" {
		if err := sess.ClickText(ctx, "div.button-text", d.Filter); err != nil {
			return nil, err
		}
	}

	var out []string
	seen := map[string]bool{}
	for page := 0; page < maxPages; page++ {
		items, err := sess.FindAll(ctx, glideItem)
		if err != nil {
			return nil, err
		}
		labels := make([]string, 0, len(items))
		for _, it := range items {
			labels = append(labels, strings.TrimSpace(it.Selection().Text()))
		}
		zap.L().Debug("glide collection page", zap.Int("page", page+1), zap.Int("items", len(labels)))

		added := 0
		for _, label := range labels {
			if err := sess.ClickText(ctx, glideItem, label); err != nil {
				return nil, err
			}
			link := sess.CurrentURL()
			if !seen[link] {
				seen[link] = true
				out = append(out, link)
				added++
			}
			if err := sess.Back(ctx); err != nil {
				return nil, err
			}
		}

		next, err := sess.Find(ctx, glideNext)
		if err != nil || added == 0 {
			break
		}
		if _, disabled := next.Selection().Attr("disabled"); disabled {
			break
		}
		if err := sess.Click(ctx, glideNext); err != nil {
			zap.L().Debug("glide next page", zap.Error(err))
			break
		}
	}
	return out, nil
}

func (glide) events(ctx context.Context, sess browser.Session, d source.Descriptor, link string) ([]normalize.RawEvent, error) {
	raw := baseEvent(d, link)
	raw.TicketsLink = link
	raw.RequireDescription = true

	if raw.EventID = lastSegment(link); raw.EventID == "" {
		return nil, missingField("uuid")
	}
	if headline, ok := text(ctx, sess, "h2.headlineMedium"); ok && keywords.IsCanceled(headline) {
		raw.Canceled = true
		raw.Title, _ = text(ctx, sess, "h2.headlineSmall")
		return []normalize.RawEvent{raw}, nil
	}

	var err error
	if raw.Title, err = requireText(ctx, sess, "title", "h2.headlineSmall"); err != nil {
		return nil, err
	}

	date, err := glideField(ctx, sess, "Date")
	if err != nil {
		return nil, err
	}
	raw.DateText = strings.ToLower(date)

	format, err := glideField(ctx, sess, "Format")
	if err != nil {
		return nil, err
	}
	online := keywords.IsOnline(format)
	raw.Online = normalize.Bool(online)
	if !online {
		raw.LocationText, _ = glideField(ctx, sess, "Adresse")
	}

	if raw.Description, err = glideField(ctx, sess, "Description"); err != nil {
		return nil, err
	}

	attendees, err := glideField(ctx, sess, "participant")
	if err != nil {
		return nil, err
	}
	if taken, capacity, ok := strings.Cut(attendees, "/"); ok {
		raw.SoldOut = strings.TrimSpace(taken) == strings.TrimSpace(capacity)
	}
	return []normalize.RawEvent{raw}, nil
}

// glideField reads a detail row: an li whose first child is a label div
// containing label and whose second child holds the value.
func glideField(ctx context.Context, sess browser.Session, label string) (string, error) {
	items, err := sess.FindAll(ctx, "li")
	if err != nil {
		return "", err
	}
	for _, li := range items {
		children := li.Selection().Children()
		if children.Length() < 2 {
			continue
		}
		head := children.First()
		if head.Is("div") && strings.Contains(head.Text(), label) {
			return strings.TrimSpace(browser.NewElement(children.Eq(1)).Text()), nil
		}
	}
	return "", missingField(strings.ToLower(label))
}
