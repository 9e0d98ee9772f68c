// roster.go builds the roster out of the paginated player listing.

package gameserver

import (
	"context"
	"fmt"
	"net/url"
	"playermail/internal/components/assert"
	"playermail/internal/components/chrono"
	"playermail/internal/components/telemetry"
	"strconv"
	"time"
)

const (
	report_roster_page_count = "roster_scraper.page-count"
	report_roster_fetch_page = "roster_scraper.fetch-page"
	report_roster_extract    = "roster_scraper.extract"
	report_roster_players    = "roster_scraper.players"
)

const (
	ListingPath = "/statistics/player/overview"
	// PageDelay is waited between two consecutive listing fetches.
	PageDelay = 300 * time.Millisecond
)

// PageFetcher is satisfied by *Client.
type PageFetcher interface {
	AuthenticatedGet(ctx context.Context, path string, query url.Values) (string, error)
}

type RosterScraper struct {
	fetcher   PageFetcher
	extractor RosterExtractor
	chrono    chrono.API
	tel       telemetry.API
}

func NewRosterScraper(fetcher PageFetcher, extractor RosterExtractor, clock chrono.API, tel telemetry.API) RosterScraper {
	assert.NotNil(fetcher)
	assert.NotNil(extractor)
	assert.NotNil(clock)
	assert.NotNil(tel)

	return RosterScraper{
		fetcher:   fetcher,
		extractor: extractor,
		chrono:    clock,
		tel:       telemetry.NewScopedAPI("gameserver", tel),
	}
}

func (s RosterScraper) fetchPage(ctx context.Context, page int) (string, error) {
	s.tel.ReportDebug("fetch listing page", page)
	return s.fetcher.AuthenticatedGet(ctx, ListingPath, url.Values{
		"page": {strconv.Itoa(page)},
	})
}

// PageCount reads the paginator of the first listing page.
func (s RosterScraper) PageCount(ctx context.Context) (int, error) {
	body, err := s.fetchPage(ctx, 1)
	if err != nil {
		s.tel.ReportBroken(report_roster_page_count, fmt.Errorf("fetch: %w", err))
		return 0, fmt.Errorf("%w: %w", ErrMissingPaginator, err)
	}
	count, err := s.extractor.ExtractPageCount(body)
	if err != nil {
		s.tel.ReportBroken(report_roster_page_count, fmt.Errorf("extract: %w", err))
		return 0, fmt.Errorf("%w: %w", ErrMissingPaginator, err)
	}
	return count, nil
}

// ScrapeRange fetches pages [start, end) one after another and returns the
// players in page-then-row order. Any page that does not look like a listing
// aborts the whole scrape.
func (s RosterScraper) ScrapeRange(ctx context.Context, start, end int) ([]string, error) {
	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid page range [%d, %d)", start, end)
	}

	roster := []string{}
	for page := start; page < end; page++ {
		if page > start {
			err := s.chrono.Sleep(ctx, PageDelay)
			if err != nil {
				return nil, err
			}
		}

		body, err := s.fetchPage(ctx, page)
		if err != nil {
			s.tel.ReportBroken(report_roster_fetch_page, err, page)
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		players, err := s.extractor.ExtractRoster(body)
		if err != nil {
			s.tel.ReportBroken(report_roster_extract, err, page)
			return nil, &MalformedPageError{Page: page, Reason: err}
		}
		roster = append(roster, players...)
	}

	s.tel.ReportCount(report_roster_players, int64(len(roster)))
	return roster, nil
}

// Scrape is ScrapeRange over every page the paginator knows about.
func (s RosterScraper) Scrape(ctx context.Context) ([]string, error) {
	count, err := s.PageCount(ctx)
	if err != nil {
		return nil, err
	}
	s.tel.ReportDebug("pages amount", count)
	return s.ScrapeRange(ctx, 1, count+1)
}
