package scraper

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

var (
	billetwebEventID   = regexp.MustCompile(`/([^/]+?)&`)
	billetwebSessionID = regexp.MustCompile(`&session=(\d+)`)
	// "Sub title : date phrase" then the location on the next line; both
	// the title and the location are optional.
	billetwebContext = regexp.MustCompile(`^\s*(?:(.*) : )?(.*)(?:\n\s*(.*))?`)
)

// billetwebSession is one bookable date of a Billetweb event.
type billetwebSession struct {
	title    string
	dateText string
	location string
	soldOut  bool
	tickets  string
	id       string
}

type billetweb struct{}

func (billetweb) name() string       { return "billetweb" }
func (billetweb) patterns() []string { return []string{"billetweb.fr"} }

// Organizer pages embed their event list in an iframe whose id is set on
// the descriptor.
func (billetweb) links(ctx context.Context, sess browser.Session, d source.Descriptor) ([]string, error) {
	if err := sess.Navigate(ctx, d.URL); err != nil {
		return nil, err
	}
	if d.Iframe != "" {
		if err := openFrame(ctx, sess, "iframe#"+d.Iframe); err != nil {
			return nil, err
		}
	}
	return hrefs(ctx, sess, "a.naviguate")
}

// Several sources share one organizer page; their events are told apart by
// a keyword in the event link.
func (billetweb) keep(d source.Descriptor, link string) bool {
	return d.Filter == "" || strings.Contains(link, d.Filter)
}

func (b billetweb) events(ctx context.Context, sess browser.Session, d source.Descriptor, link string) ([]normalize.RawEvent, error) {
	clickIfPresent(ctx, sess, "#more_info")
	description, err := requireText(ctx, sess, "description", "#description")
	if err != nil {
		return nil, err
	}

	m := billetwebEventID.FindStringSubmatch(link)
	if m == nil || m[1] == "" {
		return nil, missingField("event_id")
	}
	eventID := m[1]

	mainTitle, err := requireText(ctx, sess, "title",
		"#event_title > div.event_name",
		"#description_block > div.event_title > div.event_name",
	)
	if err != nil {
		return nil, err
	}
	mainLocation, _ := text(ctx, sess,
		"div.location_summary",
		"#page_block_location > div.location > div.location_info > div.address > a",
	)
	monoDate, hasMonoDate := text(ctx, sess,
		"#event_title > div.event_start_time > span.text",
		"#description_block > div.event_title > span > a > div.event_start_time",
	)

	// The shop iframe lists the sessions of multi-date events, or shows the
	// basket of a single-date one.
	if err := openFrame(ctx, sess, "#shop_block iframe"); err != nil {
		return nil, err
	}
	soldOut := b.soldOut(ctx, sess)
	if back, err := hrefs(ctx, sess, ".back_header_link.summarizable"); err == nil && len(back) > 0 {
		if err := sess.Navigate(ctx, back[0]); err != nil {
			return nil, err
		}
	}
	sessionLinks, err := hrefs(ctx, sess, "a.sesssion_href")
	if err != nil {
		return nil, err
	}

	var sessions []billetwebSession
	for _, sl := range sessionLinks {
		s, err := b.session(ctx, sess, sl, eventID, mainTitle, mainLocation)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if len(sessionLinks) == 0 {
		if !hasMonoDate {
			return nil, missingField("event_start_time")
		}
		sessions = append(sessions, billetwebSession{
			title:    mainTitle,
			dateText: monoDate,
			location: mainLocation,
			soldOut:  soldOut,
			tickets:  link,
			id:       eventID,
		})
	}

	out := make([]normalize.RawEvent, 0, len(sessions))
	for i, s := range sessions {
		zap.L().Debug("processing session",
			zap.Int("index", i+1), zap.Int("total", len(sessions)), zap.String("link", s.tickets))

		raw := baseEvent(d, link)
		raw.EventID = s.id
		raw.Online = normalize.Bool(keywords.IsOnline(s.title) || keywords.IsOnline(s.location))
		// Billetweb appends a button label to online event titles.
		raw.Title = strings.ReplaceAll(s.title, " Online event", "")
		raw.Description = description
		raw.KidsText = raw.Title
		raw.DateText = s.dateText
		raw.LocationText = s.location
		raw.SoldOut = s.soldOut
		raw.GiftCard = keywords.IsGiftCard(s.title)
		raw.TicketsLink = s.tickets
		raw.RequireDescription = true
		out = append(out, raw)
	}
	return out, nil
}

// session reads one session page of a multi-date event.
func (b billetweb) session(ctx context.Context, sess browser.Session, link, eventID, mainTitle, mainLocation string) (billetwebSession, error) {
	if err := sess.Navigate(ctx, link); err != nil {
		return billetwebSession{}, err
	}
	heading, err := requireText(ctx, sess, "context_title", "#context_title")
	if err != nil {
		return billetwebSession{}, err
	}
	m := billetwebContext.FindStringSubmatch(heading)
	if m == nil {
		return billetwebSession{}, missingField("event_time")
	}

	s := billetwebSession{
		title:    mainTitle,
		dateText: strings.TrimSpace(m[2]),
		location: mainLocation,
		soldOut:  b.soldOut(ctx, sess),
		tickets:  link,
		id:       eventID,
	}
	switch sub := strings.TrimSpace(m[1]); {
	case sub == "":
	case strings.Contains(strings.ToLower(sub), "atelier"):
		s.title = sub
	default:
		s.title = mainTitle + " - " + sub
	}
	if loc := strings.TrimSpace(m[3]); loc != "" {
		s.location = loc
	}
	if sm := billetwebSessionID.FindStringSubmatch(link); sm != nil {
		s.id = eventID + "-" + sm[1]
	}
	return s, nil
}

// soldOut reports the "no more tickets" block, unless the block points to
// tickets sold elsewhere.
func (billetweb) soldOut(ctx context.Context, sess browser.Session) bool {
	el, err := sess.Find(ctx, "div.block")
	if err != nil {
		return false
	}
	return !keywords.HasExternalTickets(el.Text())
}
