package scraper

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

const (
	eventbriteShowMore    = "div.organizer-profile__section--content div.organizer-profile__show-more > button"
	eventbriteDateWrapper = `p[class*="dateWrapper"]`
	eventbriteInfoCard    = `div[class*="EventInfoCard"]`
	eventbriteSlot        = `ul[class*="TimeSlotList"] li p[class*="sessionText"]`
)

var (
	eventbriteID  = regexp.MustCompile(`/e/([^/?]+)`)
	emptyListItem = regexp.MustCompile(`,\s*,`)
)

var (
	eventbriteLocations = []string{
		`div[class^="Location-module__addressWrapper___"]`,
		`address[class^="Address_address__"]`,
	}
	eventbriteDescriptions = []string{
		"div.event-description",
		`div[class^="Overview_summary__"]`,
	}
	eventbriteDates = []string{
		"time.start-date-and-location__date",
		`[data-testid="event-datetime"]`,
	}
)

type eventbrite struct{}

func (eventbrite) name() string       { return "eventbrite" }
func (eventbrite) patterns() []string { return []string{"eventbrite.fr"} }

// links expands the organizer profile and returns its event pages, sorted.
func (eventbrite) links(ctx context.Context, sess browser.Session, d source.Descriptor) ([]string, error) {
	if err := sess.Navigate(ctx, d.URL); err != nil {
		return nil, err
	}
	if err := sess.ScrollToBottom(ctx); err != nil {
		return nil, err
	}
	loadMore(ctx, sess, eventbriteShowMore, 3)

	links, err := hrefs(ctx, sess, "div.event-card a.event-card-link")
	if err != nil {
		return nil, err
	}
	sort.Strings(links)
	return links, nil
}

// eventbriteDate is one bookable date of an event page.
type eventbriteDate struct {
	id     string
	phrase string
	hint   string
}

func (e eventbrite) events(ctx context.Context, sess browser.Session, d source.Descriptor, link string) ([]normalize.RawEvent, error) {
	m := eventbriteID.FindStringSubmatch(link)
	if m == nil {
		return nil, missingField("uuid")
	}
	base := baseEvent(d, link)
	base.EventID = m[1]
	base.Title, _ = text(ctx, sess, "h1")

	if expired(ctx, sess) {
		base.Expired = true
		return []normalize.RawEvent{base}, nil
	}
	// Sold-out pages hide most details, so the event usually fails on a
	// missing field below whatever the sold-out policy.
	if badge, err := sess.Find(ctx, `div[data-testid="salesEndedMessage"]`); err == nil && badge.Selection().Children().Length() > 0 {
		base.SoldOut = true
	}

	if base.Title == "" {
		return nil, missingField("title")
	}

	online := keywords.IsOnline(base.Title)
	if !online {
		if short, ok := text(ctx, sess, "span.start-date-and-location__location"); ok {
			online = keywords.IsOnline(short)
		}
	}
	base.Online = normalize.Bool(online)
	if !online {
		where, ok := text(ctx, sess, eventbriteLocations...)
		if !ok || where == "" {
			return nil, missingField("location")
		}
		base.LocationText = flattenAddress(where)
	}

	desc, _ := text(ctx, sess, eventbriteDescriptions...)
	if desc == "" {
		return nil, missingField("description")
	}
	base.Description = desc
	base.RequireDescription = true

	dates, err := e.dates(ctx, sess, base.EventID)
	if err != nil {
		return nil, err
	}
	out := make([]normalize.RawEvent, 0, len(dates))
	for _, dt := range dates {
		raw := base
		raw.EventID = dt.id
		raw.DateText = dt.phrase
		raw.DateHint = dt.hint
		raw.TicketsLink = link
		out = append(out, raw)
	}
	return out, nil
}

func expired(ctx context.Context, sess browser.Session) bool {
	if badge, err := sess.Find(ctx, `div[data-testid="enhancedExpiredEventsBadge"]`); err == nil && badge.Selection().Children().Length() > 0 {
		return true
	}
	_, err := sess.Find(ctx, "div.enhanced-expired-badge")
	return err == nil
}

// dates returns the single date of a plain event, or every slot of a
// collection opened through its availability button.
func (eventbrite) dates(ctx context.Context, sess browser.Session, uuid string) ([]eventbriteDate, error) {
	if _, err := sess.Find(ctx, "button[id^='check-availability-btn-']"); err != nil {
		el, err := sess.Find(ctx, eventbriteDates[0])
		if err != nil {
			el, err = sess.Find(ctx, eventbriteDates[1])
		}
		if err != nil {
			return nil, missingField("date")
		}
		phrase := strings.TrimSpace(el.Selection().Text())
		if phrase == "" {
			return nil, missingField("date")
		}
		return []eventbriteDate{{id: uuid, phrase: phrase, hint: el.Attr("datetime")}}, nil
	}

	zap.L().Info("found eventbrite collection, opening availability")
	clickIfPresent(ctx, sess, "button[id^='check-availability-btn-']")

	var phrases []string
	cards, err := sess.FindAll(ctx, `div[class*="CompactCalendar"] div[class*="compactChoiceCardContainer"]`)
	if err != nil {
		return nil, err
	}
	if len(cards) > 0 {
		month, _ := text(ctx, sess, `p[class*="monthName"]`)
		for _, c := range cards {
			s := c.Selection()
			phrases = append(phrases, fmt.Sprintf("%s, %s %s %s",
				ownText(s, `p[class*="weekday"]`), month,
				ownText(s, `p[class*="dateText"]`), ownText(s, `p[class*="timeSlot"]`)))
		}
	} else {
		if phrases, err = listPhrases(ctx, sess); err != nil {
			return nil, err
		}
	}
	if len(phrases) == 0 {
		return nil, missingField("date")
	}

	out := make([]eventbriteDate, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, eventbriteDate{id: fmt.Sprintf("%s-%d", uuid, slotSuffix(p)), phrase: p})
	}
	return out, nil
}

// listPhrases reads the list-style availability modal. Each date sits in
// its own info card; a card either holds its time slots or reveals them in
// the shared slot list once clicked. Slots are never paired with another
// card's date.
func listPhrases(ctx context.Context, sess browser.Session) ([]string, error) {
	wrappers, err := sess.FindAll(ctx, eventbriteDateWrapper)
	if err != nil {
		return nil, err
	}

	type dateCard struct {
		day   string
		card  string
		slots []string
	}
	cards := make([]dateCard, 0, len(wrappers))
	for _, w := range wrappers {
		dc := dateCard{day: strings.TrimSpace(w.Selection().Text())}
		if card := w.Selection().Closest(eventbriteInfoCard); card.Length() > 0 {
			dc.card = strings.TrimSpace(card.Text())
			dc.slots = slotTexts(card.Find(eventbriteSlot))
		}
		cards = append(cards, dc)
	}

	var phrases []string
	for _, dc := range cards {
		slots := dc.slots
		if len(slots) == 0 {
			switch {
			case len(cards) == 1:
			case dc.card == "":
				zap.L().Warn("eventbrite date outside an info card", zap.String("date", dc.day))
				continue
			default:
				if err := sess.ClickText(ctx, eventbriteInfoCard, dc.card); err != nil {
					zap.L().Warn("eventbrite date card click failed", zap.String("date", dc.day), zap.Error(err))
					continue
				}
			}
			els, err := sess.FindAll(ctx, eventbriteSlot)
			if err != nil {
				return nil, err
			}
			for _, el := range els {
				if t := strings.TrimSpace(el.Selection().Text()); t != "" {
					slots = append(slots, t)
				}
			}
		}
		if len(slots) == 0 {
			zap.L().Warn("no time slots for eventbrite date", zap.String("date", dc.day))
			continue
		}
		for _, t := range slots {
			phrases = append(phrases, dc.day+" "+t)
		}
	}
	return phrases, nil
}

func slotTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func ownText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// slotSuffix tells apart the dates of a collection in record ids.
func slotSuffix(phrase string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(phrase))
	return h.Sum32() % 10000
}

// flattenAddress joins stacked address lines with commas.
func flattenAddress(s string) string {
	s = strings.ReplaceAll(s, "\n", ", ")
	s = strings.Join(strings.Fields(s), " ")
	s = emptyListItem.ReplaceAllString(s, ",")
	return strings.Trim(s, ", ")
}
