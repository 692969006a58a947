package engine

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/use-agent/rankwatch/models"
	"github.com/use-agent/rankwatch/serp"
)

// Strategy is the interface every fetch mechanism implements.
//
// Search returns an Observation with a nil Position when the domain is not
// ranked within the fetched window. An error means the page could not be
// fetched at all; "not found" is never an error.
type Strategy interface {
	// Name returns the strategy identifier (e.g. "http", "browser", "api").
	Name() string

	// Search fetches the results page for keyword and locates domain in it.
	Search(ctx context.Context, keyword, domain string, numResults int) (*models.Observation, error)
}

// SearchURL builds the results URL for keyword with a window of num entries.
func SearchURL(base, keyword string, num int) string {
	q := url.Values{}
	q.Set("q", keyword)
	if num > 0 {
		q.Set("num", strconv.Itoa(num))
	}
	q.Set("hl", "en")
	return base + "?" + q.Encode()
}

// Host returns the hostname of a base URL, used to key rate limits.
func Host(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	return u.Hostname()
}

// observe runs the result parser over page and converts the outcome.
func observe(strategy, page, keyword, domain string) *models.Observation {
	report := serp.Scan(page, domain)
	obs := &models.Observation{
		Keyword:            keyword,
		Domain:             domain,
		LayoutUnrecognized: !report.Recognized,
	}
	if !report.Recognized {
		slog.Warn("results page layout not recognized, reporting not found",
			"strategy", strategy,
			"keyword", keyword,
			"bytes", len(page),
		)
	}
	if report.Match != nil {
		pos := report.Match.Position
		obs.Position = &pos
		obs.URL = report.Match.URL
		obs.Title = report.Match.Title
		obs.Snippet = report.Match.Snippet
	}
	return obs
}
