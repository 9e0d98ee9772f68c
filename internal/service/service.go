package service

import (
	"context"
	"errors"
	"fmt"
	"playermail/internal/components/assert"
	"playermail/internal/components/telemetry"
	"playermail/internal/dispatch"
	"playermail/internal/scrapers/gameserver"
)

// ErrNoPlayers is returned by SendAll when there is nothing to send to.
var ErrNoPlayers = errors.New("no players, scrape first")

const (
	report_messenger_login   = "messenger.login"
	report_messenger_parse   = "messenger.parse"
	report_messenger_send    = "messenger.send"
	report_messenger_pages   = "messenger.pages"
	report_messenger_players = "messenger.players-added"
)

// SessionAPI is satisfied by *gameserver.Client.
type SessionAPI interface {
	Session() (gameserver.Session, bool)
	Login(ctx context.Context) (gameserver.Session, error)
	Logout(ctx context.Context)
}

// ScraperAPI is satisfied by gameserver.RosterScraper.
type ScraperAPI interface {
	PageCount(ctx context.Context) (int, error)
	ScrapeRange(ctx context.Context, start, end int) ([]string, error)
}

// DispatchAPI is satisfied by *dispatch.Dispatcher.
type DispatchAPI interface {
	Run(ctx context.Context) (dispatch.Report, error)
}

// Messenger is what an operator drives, either from one-shot commands or the
// interactive menu. It logs in lazily, the first operation that needs the
// server establishes the session.
type Messenger struct {
	session    SessionAPI
	scraper    ScraperAPI
	queue      dispatch.Store
	dispatcher DispatchAPI
	tel        telemetry.API
}

type messengerConfig struct {
	tel telemetry.API
}

type MessengerOption func(cfg *messengerConfig)

func WithCustomTelemetryAPI(tel telemetry.API) MessengerOption {
	return func(cfg *messengerConfig) {
		cfg.tel = tel
	}
}

func NewMessenger(
	session SessionAPI,
	scraper ScraperAPI,
	queue dispatch.Store,
	dispatcher DispatchAPI,
	options ...MessengerOption,
) Messenger {
	assert.NotNil(session)
	assert.NotNil(scraper)
	assert.NotNil(queue)
	assert.NotNil(dispatcher)

	cfg := messengerConfig{}
	for _, opt := range options {
		opt(&cfg)
	}
	tel := cfg.tel
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}

	return Messenger{
		session:    session,
		scraper:    scraper,
		queue:      queue,
		dispatcher: dispatcher,
		tel:        telemetry.NewScopedAPI("service", tel),
	}
}

func (m Messenger) ensureSession(ctx context.Context) error {
	_, ok := m.session.Session()
	if ok {
		return nil
	}
	_, err := m.session.Login(ctx)
	if err != nil {
		m.tel.ReportBroken(report_messenger_login, err)
		return err
	}
	return nil
}

type ParseResult struct {
	Pages   int
	Players int
}

// Parse scrapes the whole roster and replaces the persisted one with it. A
// failed scrape leaves the persisted roster untouched.
func (m Messenger) Parse(ctx context.Context) (ParseResult, error) {
	err := m.ensureSession(ctx)
	if err != nil {
		return ParseResult{}, err
	}

	pages, err := m.scraper.PageCount(ctx)
	if err != nil {
		m.tel.ReportBroken(report_messenger_parse, err)
		return ParseResult{}, err
	}
	m.tel.ReportCount(report_messenger_pages, int64(pages))

	roster, err := m.scraper.ScrapeRange(ctx, 1, pages+1)
	if err != nil {
		m.tel.ReportBroken(report_messenger_parse, err)
		return ParseResult{Pages: pages}, err
	}

	err = m.queue.Save(roster)
	if err != nil {
		m.tel.ReportBroken(report_messenger_parse, fmt.Errorf("save roster: %w", err))
		return ParseResult{Pages: pages}, err
	}
	m.tel.ReportCount(report_messenger_players, int64(len(roster)))

	return ParseResult{Pages: pages, Players: len(roster)}, nil
}

// Pending returns how many players are still waiting for a message.
func (m Messenger) Pending() (int, error) {
	roster, err := m.queue.Load()
	if err != nil {
		return 0, err
	}
	return len(roster), nil
}

// SendAll drains the persisted roster. It fails with ErrNoPlayers before
// touching the network if there is nothing to send.
func (m Messenger) SendAll(ctx context.Context) (dispatch.Report, error) {
	pending, err := m.Pending()
	if err != nil {
		m.tel.ReportBroken(report_messenger_send, err)
		return dispatch.Report{}, err
	}
	if pending == 0 {
		return dispatch.Report{}, ErrNoPlayers
	}

	err = m.ensureSession(ctx)
	if err != nil {
		return dispatch.Report{Remaining: pending}, err
	}
	return m.dispatcher.Run(ctx)
}

// Logout ends the session if there is one, it never fails.
func (m Messenger) Logout(ctx context.Context) {
	m.session.Logout(ctx)
}
