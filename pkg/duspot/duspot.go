// Package duspot reads product listings from the Duspot API.
//
// The products collection is a Hydra (API Platform) resource: every page
// carries the total item count in hydra:totalItems and the records in
// hydra:member. Listings are fetched page by page through pagination.Fetcher
// and returned as raw JSON records.
package duspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Sternrassler/matexport/pkg/client"
	"github.com/Sternrassler/matexport/pkg/logging"
	"github.com/Sternrassler/matexport/pkg/pagination"
	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Name is the source name Duspot is reported under in logs, metrics and
// export filenames.
const Name = "duspot"

// DefaultBaseURL is the products collection endpoint.
const DefaultBaseURL = "https://api.duspot.nl/api/products"

// ListOptions are the filter parameters sent with every page request.
type ListOptions struct {
	Published  bool   `url:"published"`
	SpotActive bool   `url:"spot.active"`
	Search     string `url:"search,omitempty"`
}

// DefaultListOptions returns the filters for all published, active listings.
func DefaultListOptions() ListOptions {
	return ListOptions{Published: true, SpotActive: true}
}

// pageParams adds the page index to ListOptions.
type pageParams struct {
	ListOptions
	Page int `url:"page"`
}

// Config holds the Duspot source configuration.
type Config struct {
	// BaseURL of the products collection. Defaults to DefaultBaseURL.
	BaseURL string

	// Pagination controls concurrency, per-page timeout and progress.
	Pagination pagination.Config
}

// Source fetches Duspot listings.
type Source struct {
	client  *client.Client
	baseURL string
	config  Config
	logger  zerolog.Logger
}

// New creates a Duspot source on top of an authenticated client.
func New(c *client.Client, cfg Config) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Source{
		client:  c,
		baseURL: cfg.BaseURL,
		config:  cfg,
		logger:  logging.NewLogger("duspot"),
	}
}

// FetchAll returns every listing matching opts, in page order. Any failed
// page aborts the fetch and no records are returned.
func (s *Source) FetchAll(ctx context.Context, opts ListOptions) ([]json.RawMessage, error) {
	s.logger.Info().
		Bool("published", opts.Published).
		Bool("spot_active", opts.SpotActive).
		Str("search", opts.Search).
		Msg("Fetching listings")

	fetcher := pagination.NewFetcher(s.pageFetcher(opts), s.config.Pagination)
	records, err := fetcher.FetchAll(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch duspot listings: %w", err)
	}
	return records, nil
}

func (s *Source) pageFetcher(opts ListOptions) pagination.PageFetcher {
	return pagination.PageFetcherFunc(func(ctx context.Context, endpoint string, pageNum int) (pagination.Page, error) {
		params, err := query.Values(pageParams{ListOptions: opts, Page: pageNum})
		if err != nil {
			return pagination.Page{}, fmt.Errorf("encode query: %w", err)
		}

		body, err := s.client.Get(ctx, endpoint, params)
		if err != nil {
			return pagination.Page{}, err
		}
		return ParseEnvelope(body)
	})
}

// Get returns a single product by id.
func (s *Source) Get(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("product id is required")
	}

	endpoint, err := url.JoinPath(s.baseURL, url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("build product url: %w", err)
	}

	body, err := s.client.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get duspot product %s: %w", id, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("get duspot product %s: response is not valid JSON", id)
	}
	return json.RawMessage(body), nil
}

// ParseEnvelope decodes a Hydra collection page.
func ParseEnvelope(body []byte) (pagination.Page, error) {
	if !gjson.ValidBytes(body) {
		return pagination.Page{}, fmt.Errorf("%w: response is not valid JSON", pagination.ErrInvalidEnvelope)
	}

	total := gjson.GetBytes(body, "hydra:totalItems")
	if total.Type != gjson.Number {
		return pagination.Page{}, fmt.Errorf("%w: missing hydra:totalItems", pagination.ErrInvalidEnvelope)
	}

	members := gjson.GetBytes(body, "hydra:member")
	if !members.IsArray() {
		return pagination.Page{}, fmt.Errorf("%w: missing hydra:member", pagination.ErrInvalidEnvelope)
	}

	page := pagination.Page{TotalItems: int(total.Int())}
	members.ForEach(func(_, member gjson.Result) bool {
		page.Members = append(page.Members, json.RawMessage(member.Raw))
		return true
	})
	return page, nil
}
