package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trouver-une-fresque/fresk-scraper/internal/fetch"
)

const listingPage = `<html><body>
<h1>Ateliers</h1>
<ul>
	<li><a class="event" href="/e/1">Atelier 1</a></li>
	<li><a class="event" href="/e/2">Atelier 2</a></li>
</ul>
<button id="more">Voir plus</button>
</body></html>`

const detailPage = `<html><body>
<h1>Atelier 1</h1>
<div class="location">Maison des Associations<br>12 rue de la Paix
	75002   Paris</div>
<script>var x = "ignored";</script>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/e/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStatic() *Static {
	return NewStatic(fetch.New(fetch.Options{Interval: -1}))
}

func TestStaticSession(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	s := newStatic()
	defer s.Close()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/list"))
	assert.Equal(t, srv.URL+"/list", s.CurrentURL())

	links, err := s.FindAll(ctx, "a.event")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "/e/2", links[1].Attr("href"))

	require.NoError(t, s.Click(ctx, "a.event"))
	assert.Equal(t, srv.URL+"/e/1", s.CurrentURL())

	loc, err := s.Find(ctx, "div.location")
	require.NoError(t, err)
	assert.Equal(t, "Maison des Associations\n12 rue de la Paix 75002 Paris", loc.Text())

	_, err = s.Find(ctx, "div.missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Back(ctx))
	assert.Equal(t, srv.URL+"/list", s.CurrentURL())

	var fatal *FatalError
	assert.True(t, errors.As(s.Click(ctx, "#more"), &fatal), "buttons cannot be followed")
}

func TestStaticNavigateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/busy" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newStatic()
	err := s.Navigate(context.Background(), srv.URL+"/busy")
	assert.True(t, IsTransient(err))

	err = s.Navigate(context.Background(), srv.URL+"/gone")
	var fatal *FatalError
	assert.True(t, errors.As(err, &fatal))
}

func TestInnerText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"inline", `<span>Le 12 <b>février</b> 2025</span>`, "Le 12 février 2025"},
		{"blocks", `<div><p>Ligne 1</p><p>Ligne   2</p></div>`, "Ligne 1\nLigne 2"},
		{"br", `<div>A<br/>B</div>`, "A\nB"},
		{"style dropped", `<div><style>.x{}</style>Texte</div>`, "Texte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, NewElement(doc.Find("body")).Text())
		})
	}
}

func TestElementFind(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="card"><i class="fa-clock"></i><span>14:00</span></div>`))
	require.NoError(t, err)

	card := NewElement(doc.Find("div.card"))
	icon, err := card.Find("i.fa-clock")
	require.NoError(t, err)
	assert.True(t, icon.HasClass("fa-clock"))
	assert.Equal(t, "14:00", icon.Parent().Text())

	_, err = card.Find("i.fa-globe")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, card.FindAll("i.fa-globe"))
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return &TransientError{Op: "click", Err: errors.New("node is detached")}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("transient exhausted becomes fatal", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func(context.Context) error {
			calls++
			return &TransientError{Op: "click", Err: errors.New("stale element")}
		})
		var fatal *FatalError
		require.True(t, errors.As(err, &fatal))
		assert.Equal(t, "click", fatal.Op)
		assert.Equal(t, 3, calls)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func(context.Context) error {
			calls++
			return ErrNotFound
		})
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, 1, calls)
	})
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	assert.True(t, IsTransient(classify(ctx, "click", errors.New("Could not find node with given id"))))
	assert.False(t, IsTransient(classify(ctx, "click", errors.New("net::ERR_NAME_NOT_RESOLVED"))))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, IsTransient(classify(canceled, "click", errors.New("context deadline exceeded"))))
}

func TestResolve(t *testing.T) {
	got, err := Resolve("https://www.billetweb.fr/multi_event.php?user=1", "/shop.php?event=x")
	require.NoError(t, err)
	assert.Equal(t, "https://www.billetweb.fr/shop.php?event=x", got)
}
