// Package insert reads material listings from Insert Marktplaats
// (https://marktplaats.insert.nl): products per category through the public
// GraphQL API, and the complete catalogue through the XML feed.
package insert

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/matexport/pkg/logging"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Name is the source name Insert is reported under in logs, metrics and
// export filenames.
const Name = "insert"

const (
	// DefaultGraphQLURL is the public GraphQL endpoint. It requires no
	// authentication.
	DefaultGraphQLURL = "https://app.insert.nl/graphql"

	// DefaultFeedURL serves the full material catalogue as XML.
	DefaultFeedURL = "https://marktplaats.insert.nl/feed/"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "matexport_insert_requests_total",
	Help: "Total Insert Marktplaats requests by endpoint and status",
}, []string{"endpoint", "status"})

// Config holds the Insert client configuration.
type Config struct {
	GraphQLURL string
	FeedURL    string
	UserAgent  string

	// Timeout per HTTP request.
	Timeout time.Duration

	// MaxRetries for 5xx, 429 and transport failures.
	MaxRetries int

	// HTTPClient replaces the default transport (tests, proxies).
	HTTPClient *http.Client
}

// DefaultConfig returns the production endpoints.
func DefaultConfig(userAgent string) Config {
	return Config{
		GraphQLURL: DefaultGraphQLURL,
		FeedURL:    DefaultFeedURL,
		UserAgent:  userAgent,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Client talks to the Insert GraphQL API and XML feed.
type Client struct {
	http   *resty.Client
	config Config
	logger zerolog.Logger
}

// New creates an Insert client.
func New(cfg Config) *Client {
	defaults := DefaultConfig(cfg.UserAgent)
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = defaults.GraphQLURL
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = defaults.FeedURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	client.
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := res.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})

	c := &Client{
		http:   client,
		config: cfg,
		logger: logging.NewLogger("insert"),
	}
	client.OnAfterResponse(c.onAfterResponse)
	return c
}

func (c *Client) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	endpoint := "graphql"
	if res.Request.URL == c.config.FeedURL {
		endpoint = "feed"
	}
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(res.StatusCode())).Inc()

	c.logger.Debug().
		Str("method", res.Request.Method).
		Str("url", res.Request.URL).
		Int("status", res.StatusCode()).
		Dur("duration", res.Time()).
		Msg("Request completed")
	return nil
}
