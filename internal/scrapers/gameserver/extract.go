package gameserver

import (
	"errors"
	"fmt"
	"playermail/lib/htmlutil"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RosterExtractor turns a listing page into player names, it is the only piece
// that knows about the markup of the listing.
type RosterExtractor interface {
	// ExtractRoster returns the player names on the page, top to bottom.
	ExtractRoster(html string) ([]string, error)
	// ExtractPageCount returns the highest page number in the paginator, or 1
	// if the page has no paginator.
	ExtractPageCount(html string) (int, error)
}

// ListingExtractor implements RosterExtractor with css selectors.
type ListingExtractor struct {
	// RowSelector matches one element per row, the first match is the header.
	RowSelector string
	// NameSelector is evaluated inside a row, the first match holds the name.
	NameSelector      string
	PaginatorSelector string
	// PageLinkSelector is evaluated inside the paginator.
	PageLinkSelector string
}

func DefaultListingExtractor() ListingExtractor {
	return ListingExtractor{
		RowSelector:       ".pla",
		NameSelector:      "a",
		PaginatorSelector: "div.paginator",
		PageLinkSelector:  "a.number",
	}
}

var errNoRows = errors.New("no player rows")

func (e ListingExtractor) ExtractRoster(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	rows := doc.Find(e.RowSelector)
	if rows.Length() == 0 {
		return nil, fmt.Errorf("%w matching %q", errNoRows, e.RowSelector)
	}

	players := []string{}
	var rowErr error
	rows.Slice(1, goquery.ToEnd).EachWithBreak(func(i int, row *goquery.Selection) bool {
		name, ok := htmlutil.SelectionText(row.Find(e.NameSelector).First())
		if !ok || name == "" {
			rowErr = fmt.Errorf("row %d: no %q with a name", i+1, e.NameSelector)
			return false
		}
		players = append(players, name)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return players, nil
}

func (e ListingExtractor) ExtractPageCount(html string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}

	paginator := doc.Find(e.PaginatorSelector).First()
	if paginator.Length() == 0 {
		return 1, nil
	}

	maxPage := 1
	paginator.Find(e.PageLinkSelector).Each(func(_ int, link *goquery.Selection) {
		number, err := strconv.Atoi(htmlutil.CleanText(link.Text()))
		if err != nil {
			return
		}
		if number > maxPage {
			maxPage = number
		}
	})

	return maxPage, nil
}
