package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
)

var urlPattern = regexp.MustCompile(`https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*`)

// meetingPrefixes are video-call and help links that are never a ticketing page.
var meetingPrefixes = []string{
	"https://meet.google.com",
	"https://support.google.com",
	"https://us02web.zoom.us",
	"https://zoom.us",
	"https://teams.microsoft.com",
}

// IsMeetingURL reports whether s points at a video-call service.
func IsMeetingURL(s string) bool {
	s = strings.TrimSpace(s)
	for _, p := range meetingPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

type link struct {
	url  string
	text string
}

// ExtractTicketingURL finds the registration link in a description written
// as HTML or plain text. A single candidate wins; otherwise the single
// candidate whose text looks like registration wins; otherwise nothing.
func ExtractTicketingURL(description string) string {
	links := descriptionLinks(description)

	kept := links[:0]
	for _, l := range links {
		if !IsMeetingURL(l.url) {
			kept = append(kept, l)
		}
	}
	if len(kept) == 1 {
		return kept[0].url
	}

	var registration []link
	for _, l := range kept {
		if keywords.IsTicketing(l.text) {
			registration = append(registration, l)
		}
	}
	if len(registration) == 1 {
		return registration[0].url
	}
	return ""
}

func descriptionLinks(description string) []link {
	var links []link
	if strings.Contains(strings.ToLower(description), "<a ") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
		if err == nil {
			doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href := strings.TrimSpace(a.AttrOr("href", ""))
				if strings.HasPrefix(href, "http") {
					links = append(links, link{url: href, text: strings.TrimSpace(a.Text())})
				}
			})
			if len(links) > 0 {
				return links
			}
		}
	}

	// Plain text: the words just before a URL ("Lien d'inscription : http://...")
	// stand in for anchor text.
	for _, loc := range urlPattern.FindAllStringIndex(description, -1) {
		u := description[loc[0]:loc[1]]
		lineStart := strings.LastIndex(description[:loc[0]], "\n") + 1
		links = append(links, link{url: u, text: description[lineStart:loc[0]] + u})
	}
	return links
}
