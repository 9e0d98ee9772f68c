package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"playermail/internal/components/chrono"
	"playermail/internal/components/telemetry"
	"playermail/internal/dispatch"
	"playermail/internal/scrapers/gameserver"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameServer stands in for a game world: it hands out a session cookie and
// serves a paginated listing and the message form behind it.
type gameServer struct {
	mu        sync.Mutex
	pages     [][]string
	requests  int
	logins    int
	delivered []string
	// expireAfter drops the session after this many deliveries, 0 never.
	expireAfter int
	// brokenPage is served as a maintenance page, 0 never.
	brokenPage int
	cookie      string
}

func (s *gameServer) authorized(r *http.Request) bool {
	return r.Header.Get("cookie") == "sid="+s.cookie
}

func (s *gameServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"nonce": "n0nce"})
	})
	mux.HandleFunc("POST /api/v1/auth/n0nce", func(w http.ResponseWriter, r *http.Request) {
		s.logins++
		s.cookie = fmt.Sprintf("session-%d", s.logins)
		w.Header().Set("set-cookie", "sid="+s.cookie+"; Path=/")
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		s.cookie = ""
	})
	mux.HandleFunc("GET "+gameserver.ListingPath, func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Redirect(w, r, "/login.php", http.StatusFound)
			return
		}
		var page int
		_, err := fmt.Sscan(r.URL.Query().Get("page"), &page)
		assert.NoError(t, err)
		if page == s.brokenPage {
			w.Write([]byte(`<html><body>maintenance</body></html>`))
			return
		}
		if page < 1 || page > len(s.pages) {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(listingHtml(s.pages[page-1], len(s.pages))))
	})
	mux.HandleFunc("POST "+dispatch.WritePath, func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Redirect(w, r, "/login.php", http.StatusFound)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Join us", r.PostForm.Get("be"))
		assert.Equal(t, "We are recruiting.", r.PostForm.Get("message"))
		s.delivered = append(s.delivered, r.PostForm.Get("an"))
		if s.expireAfter > 0 && len(s.delivered) == s.expireAfter {
			s.cookie = "expired"
		}
		w.Write([]byte("sent"))
	})
	mux.HandleFunc("GET /login.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<form class="login"></form>`))
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests++
		mux.ServeHTTP(w, r)
	})
}

func (s *gameServer) stats() (requests, logins int, delivered []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.logins, append([]string(nil), s.delivered...)
}

func listingHtml(players []string, pageCount int) string {
	var out strings.Builder
	out.WriteString(`<table><tr><th class="pla">Player</th></tr>`)
	for _, p := range players {
		fmt.Fprintf(&out, `<tr><td class="pla"><a href="/profile">%s</a></td></tr>`, p)
	}
	out.WriteString(`</table>`)
	if pageCount > 1 {
		out.WriteString(`<div class="paginator">`)
		for i := 1; i <= pageCount; i++ {
			fmt.Fprintf(&out, `<a class="number" href="?page=%d">%d</a>`, i, i)
		}
		out.WriteString(`</div>`)
	}
	return out.String()
}

type fixture struct {
	messenger Messenger
	queue     dispatch.Queue
	clock     *chrono.Fake
	tel       *telemetry.TestAPI
}

func setup(t *testing.T, server string) fixture {
	t.Helper()

	clock := chrono.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tel := telemetry.NewTestAPI()

	client, err := gameserver.NewClient(gameserver.ClientOptions{
		Credentials: gameserver.Credentials{
			Server:   server,
			Login:    "hero",
			Password: "hunter2",
		},
		Chrono: clock,
	}, tel)
	require.NoError(t, err)

	scraper := gameserver.NewRosterScraper(client, gameserver.DefaultListingExtractor(), clock, tel)
	queue := dispatch.NewQueue(filepath.Join(t.TempDir(), "players.json"))
	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Sender: client,
		Queue:  queue,
		Template: dispatch.MessageTemplate{
			Subject: "Join us",
			Body:    "We are recruiting.",
		},
		Delay:  3 * time.Second,
		Chrono: clock,
	}, tel)

	return fixture{
		messenger: NewMessenger(client, scraper, queue, dispatcher, WithCustomTelemetryAPI(tel)),
		queue:     queue,
		clock:     clock,
		tel:       tel,
	}
}

func TestParseThenSend(t *testing.T) {
	fake := &gameServer{pages: [][]string{{"alice", "bob"}, {"carol"}}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	f := setup(t, server.URL)
	ctx := context.Background()

	parsed, err := f.messenger.Parse(ctx)
	require.NoError(t, err)
	require.Equal(t, ParseResult{Pages: 2, Players: 3}, parsed)

	roster, err := f.queue.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, roster)

	report, err := f.messenger.SendAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)
	for _, o := range report.Outcomes {
		require.Equal(t, dispatch.OutcomeSent, o.Outcome)
	}

	_, logins, delivered := fake.stats()
	require.Equal(t, []string{"carol", "bob", "alice"}, delivered)
	require.Equal(t, 1, logins)

	roster, err = f.queue.Load()
	require.NoError(t, err)
	require.Empty(t, roster)

	pending, err := f.messenger.Pending()
	require.NoError(t, err)
	require.Zero(t, pending)

	// one page delay during the scrape, two dispatch delays
	require.Equal(t, []time.Duration{
		gameserver.PageDelay,
		3 * time.Second,
		3 * time.Second,
	}, f.clock.Sleeps())
}

func TestSendWithoutRosterMakesNoRequests(t *testing.T) {
	fake := &gameServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	f := setup(t, server.URL)

	_, err := f.messenger.SendAll(context.Background())
	require.ErrorIs(t, err, ErrNoPlayers)
	require.Equal(t, "no players, scrape first", err.Error())

	requests, _, _ := fake.stats()
	require.Zero(t, requests)
}

func TestSendReauthenticatesOnce(t *testing.T) {
	fake := &gameServer{expireAfter: 1}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	f := setup(t, server.URL)
	require.NoError(t, f.queue.Save([]string{"alice", "bob"}))

	report, err := f.messenger.SendAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, dispatch.OutcomeSent, report.Outcomes[0].Outcome)
	require.Equal(t, dispatch.OutcomeSentAfterReauth, report.Outcomes[1].Outcome)

	_, logins, delivered := fake.stats()
	require.Equal(t, 2, logins)
	require.Equal(t, []string{"bob", "alice"}, delivered)
	require.Len(t, f.tel.Warnings("dispatcher.reauth"), 1)
}

func TestParseFailureKeepsRoster(t *testing.T) {
	fake := &gameServer{pages: [][]string{{"alice"}, {"bob"}}, brokenPage: 2}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	f := setup(t, server.URL)
	require.NoError(t, f.queue.Save([]string{"zed"}))

	_, err := f.messenger.Parse(context.Background())
	require.ErrorIs(t, err, gameserver.ErrMalformedPage)
	require.NotEmpty(t, f.tel.Broken("messenger.parse"))

	roster, err := f.queue.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"zed"}, roster)
}

func TestLoginFailureStopsSend(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	f := setup(t, server.URL)
	require.NoError(t, f.queue.Save([]string{"alice"}))

	report, err := f.messenger.SendAll(context.Background())
	require.ErrorIs(t, err, gameserver.ErrNoNonce)
	require.Equal(t, 1, report.Remaining)
	require.Len(t, f.tel.Broken("messenger.login"), 1)
}

func TestLogout(t *testing.T) {
	fake := &gameServer{pages: [][]string{{"alice"}}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	f := setup(t, server.URL)
	f.messenger.Logout(context.Background())
	requests, _, _ := fake.stats()
	require.Zero(t, requests)

	_, err := f.messenger.Parse(context.Background())
	require.NoError(t, err)
	f.messenger.Logout(context.Background())

	requests, logins, _ := fake.stats()
	require.Equal(t, 1, logins)
	// login (2), listing (2), logout
	require.Equal(t, 5, requests)
}
