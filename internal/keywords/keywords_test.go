package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) bool
		text string
		want bool
	}{
		{"online french", IsOnline, "Atelier en ligne", true},
		{"online uppercase", IsOnline, "ONLINE", true},
		{"in person", IsOnline, "Présentiel", false},
		{"training", IsTraining, "Formation animateur", true},
		{"training english", IsTraining, "Facilitator TRAINING", true},
		{"workshop", IsTraining, "Atelier découverte", false},
		{"sold out", IsSoldOut, "Complet", true},
		{"sold out english", IsSoldOut, "Sold Out", true},
		{"seats left", IsSoldOut, "3 places restantes", false},
		{"kids", IsForKids, "Fresque pour les enfants", true},
		{"school without accent", IsForKids, "Atelier ecole primaire", true},
		{"adults", IsForKids, "Tout public", false},
		{"canceled accent", IsCanceled, "Atelier ANNULÉ", true},
		{"canceled without accent", IsCanceled, "annule", true},
		{"not canceled", IsCanceled, "Atelier confirmé", false},
		{"canceled folded", IsCanceled, "Annulation", true},
		{"plenary", IsPlenary, "Session plénière", true},
		{"plenary no accent", IsPlenary, "Pleniere d'ouverture", true},
		{"gift card", IsGiftCard, "Carte cadeau - 2 places", true},
		{"ticketing", IsTicketing, "Lien d'inscription", true},
		{"external tickets", HasExternalTickets, "Billetterie externe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.text))
		})
	}
}

func TestClassifyTrainingExcludesKids(t *testing.T) {
	tests := []struct {
		title, kids string
		want        Flags
	}{
		{"Formation animateur", "atelier pour enfants", Flags{Training: true, Kids: false}},
		{"Atelier", "atelier pour enfants", Flags{Training: false, Kids: true}},
		{"Atelier", "tout public", Flags{}},
	}

	for _, tt := range tests {
		got := Classify(tt.title, tt.kids)
		assert.Equal(t, tt.want, got, tt.title)
		assert.False(t, got.Training && got.Kids)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "fevrier", Fold("Février"))
	assert.Equal(t, "pleniere", Fold("PLÉNIÈRE"))
}
