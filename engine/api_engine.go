package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/use-agent/rankwatch/models"
)

// APIEngine forwards the query to a third-party fetch service that returns
// the already-fetched results page.
type APIEngine struct {
	client    *resty.Client
	apiURL    string
	apiKey    string
	searchURL string
}

// APIOptions configures an APIEngine.
type APIOptions struct {
	APIURL    string
	APIKey    string
	SearchURL string
	Timeout   time.Duration
}

// NewAPIEngine creates an APIEngine. A missing API key is a configuration
// error: the caller must pick another strategy or abort the run.
func NewAPIEngine(opts APIOptions) (*APIEngine, error) {
	if opts.APIKey == "" {
		return nil, models.NewScrapeError(models.KindConfiguration, "api strategy selected but no API key configured", nil)
	}
	if opts.APIURL == "" {
		return nil, models.NewScrapeError(models.KindConfiguration, "api strategy selected but no API URL configured", nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "text/html")
	return &APIEngine{
		client:    client,
		apiURL:    opts.APIURL,
		apiKey:    opts.APIKey,
		searchURL: opts.SearchURL,
	}, nil
}

func (e *APIEngine) Name() string { return "api" }

func (e *APIEngine) Search(ctx context.Context, keyword, domain string, numResults int) (*models.Observation, error) {
	if e.apiKey == "" {
		return nil, models.NewScrapeError(models.KindConfiguration, "api: no API key configured", nil)
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key": e.apiKey,
			"url":     SearchURL(e.searchURL, keyword, numResults),
			"render":  "false",
		}).
		Get(e.apiURL)
	if err != nil {
		return nil, models.NewScrapeError(models.KindNetwork, "api: request failed", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, models.NewScrapeError(models.KindNetwork,
			fmt.Sprintf("api: unexpected status %d", resp.StatusCode()), nil)
	}
	return observe(e.Name(), resp.String(), keyword, domain), nil
}
