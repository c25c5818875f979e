// Package keywords holds the small phrase vocabularies used to classify
// event titles, format labels and descriptions.
package keywords

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	onlineWords    = []string{"online", "en ligne", "distanciel", "virtuel", "virtual", "visio", "remote", "webinar", "zoom", "teams"}
	trainingWords  = []string{"formation", "training", "formateur", "animateur", "facilitator"}
	soldOutWords   = []string{"complet", "sold out", "sold-out", "plus de place", "0 place", "no more tickets", "épuisé"}
	kidsWords      = []string{"enfant", "kids", "junior", "jeunes", "scolaire", "école", "primaire", "collège", "children"}
	canceledWords  = []string{"annulé", "annulée", "annulation", "cancelled", "canceled"}
	plenaryWords   = []string{"plénière", "plenary"}
	giftCardWords  = []string{"carte cadeau", "gift card", "bon cadeau"}
	ticketingWords = []string{"billetterie", "registration", "ticket", "inscription", "register", "réserver", "booking"}
	externalWords  = []string{"billetterie externe", "external ticketing", "inscription externe", "lien d'inscription"}
)

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and strips diacritics so that "Annulé" matches "annule".
func Fold(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func containsAny(text string, words []string) bool {
	folded := Fold(text)
	for _, w := range words {
		if strings.Contains(folded, Fold(w)) {
			return true
		}
	}
	return false
}

// IsOnline reports whether a format or location label describes a remote event.
func IsOnline(text string) bool { return containsAny(text, onlineWords) }

// IsTraining reports whether a title or type label describes a facilitator training.
func IsTraining(text string) bool { return containsAny(text, trainingWords) }

// IsSoldOut reports whether a capacity label says no seats are left.
func IsSoldOut(text string) bool { return containsAny(text, soldOutWords) }

// IsForKids reports whether text targets children or schools.
func IsForKids(text string) bool { return containsAny(text, kidsWords) }

// IsCanceled reports whether a headline marks the event as canceled.
func IsCanceled(text string) bool { return containsAny(text, canceledWords) }

// IsPlenary reports whether a title describes a plenary session.
func IsPlenary(text string) bool { return containsAny(text, plenaryWords) }

// IsGiftCard reports whether a ticket title is a gift card rather than a session.
func IsGiftCard(text string) bool { return containsAny(text, giftCardWords) }

// IsTicketing reports whether anchor text looks like a registration link.
func IsTicketing(text string) bool { return containsAny(text, ticketingWords) }

// HasExternalTickets reports whether a page points to booking elsewhere, in
// which case its own sold-out marker is meaningless.
func HasExternalTickets(text string) bool { return containsAny(text, externalWords) }

// Flags is the result of Classify.
type Flags struct {
	Training bool
	Kids     bool
}

// Classify computes training first, then kids. A training is never for kids.
func Classify(titleOrType, kidsText string) Flags {
	f := Flags{Training: IsTraining(titleOrType)}
	f.Kids = !f.Training && IsForKids(kidsText)
	return f
}
