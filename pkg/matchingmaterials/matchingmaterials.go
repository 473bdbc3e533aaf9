// Package matchingmaterials searches building material requests and offers
// on Matching Materials (www.matchingmaterials.com).
//
// The API sits behind Microsoft Entra ID; the client passed to New is
// expected to carry an auth.Provider that yields a bearer token for it.
package matchingmaterials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Sternrassler/matexport/pkg/client"
	"github.com/Sternrassler/matexport/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Name is the source name Matching Materials is reported under in logs,
// metrics and export filenames.
const Name = "matching-materials"

// DefaultURL is the search endpoint.
const DefaultURL = "https://tradingrawmaterial.azurewebsites.net/api/buildingmaterialrequest/getByFilter"

// ErrUnknownMaterial is returned for a material category name that is not in
// the category table.
var ErrUnknownMaterial = errors.New("unknown matching materials category")

var materials = map[string]string{
	"Hout":                                  "a5324d42-9b67-479c-8c50-1b69d252d578",
	"Kalk en cement, bindmiddelen, mortels": "18b17613-50a2-43cd-9d92-d6109582d4c3",
	"Metaal":                                "98b6445e-d575-432b-8e0a-03b8d7967e3e",
	"Glas":                                  "fcef02d6-b3a5-4c34-ae93-017b59d8e09d",
	"Kunststoffen, rubbers":                 "3db93d81-1898-496c-aea9-f28085ab5ff6",
	"Anorganische materialen":               "8dc9b54a-7949-4abc-abf5-bd26ac13a19a",
	"Bevestigingsmiddelen, voegvullingen":   "a0daff86-f4bd-495d-b326-1e0f9f7c0e9f",
}

// MaterialID returns the category UUID of the named material.
func MaterialID(name string) (string, bool) {
	id, ok := materials[name]
	return id, ok
}

// Materials returns all material category names in sorted order.
func Materials() []string {
	names := make([]string, 0, len(materials))
	for name := range materials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filter is the getByFilter request body.
type Filter struct {
	Offers                  bool   `json:"offers"`
	Questions               bool   `json:"questions"`
	Tender                  bool   `json:"tender"`
	Execution               bool   `json:"execution"`
	Production              bool   `json:"production"`
	Private                 bool   `json:"private"`
	OnlyPublic              bool   `json:"onlyPublic"`
	OwnOrganization         bool   `json:"ownOrganization"`
	OrganizationID          string `json:"organizationId"`
	OrganizationName        string `json:"organizationName"`
	ProductClassificationID string `json:"productClassificationId"`
	SubTypeID               string `json:"subTypeId"`
	MaterialID              string `json:"materialId"`
}

// DefaultFilter matches every offer and request of every organization.
func DefaultFilter() Filter {
	return Filter{
		Offers:     true,
		Questions:  true,
		Tender:     true,
		Execution:  true,
		Production: true,
		Private:    true,
	}
}

// WithMaterial returns a copy of f restricted to the named material category.
func (f Filter) WithMaterial(name string) (Filter, error) {
	id, ok := MaterialID(name)
	if !ok {
		return f, fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	f.MaterialID = id
	return f, nil
}

// Config holds the Matching Materials source configuration.
type Config struct {
	// URL of the getByFilter endpoint. Defaults to DefaultURL.
	URL string
}

// Source searches Matching Materials.
type Source struct {
	client *client.Client
	url    string
	logger zerolog.Logger
}

// New creates a Matching Materials source on top of an authenticated client.
func New(c *client.Client, cfg Config) *Source {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &Source{
		client: c,
		url:    cfg.URL,
		logger: logging.NewLogger("matching-materials"),
	}
}

// Search posts filter and returns the matching records. A JSON array answer
// yields its elements; any other JSON value is returned as a single record.
func (s *Source) Search(ctx context.Context, filter Filter) ([]json.RawMessage, error) {
	body, err := s.client.PostJSON(ctx, s.url, filter)
	if err != nil {
		return nil, fmt.Errorf("search matching materials: %w", err)
	}

	records, err := parseRecords(body)
	if err != nil {
		return nil, fmt.Errorf("search matching materials: %w", err)
	}

	s.logger.Info().
		Str("material_id", filter.MaterialID).
		Int("records", len(records)).
		Msg("Search complete")
	return records, nil
}

func parseRecords(body []byte) ([]json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return []json.RawMessage{json.RawMessage(result.Raw)}, nil
	}

	records := []json.RawMessage{}
	result.ForEach(func(_, value gjson.Result) bool {
		records = append(records, json.RawMessage(value.Raw))
		return true
	})
	return records, nil
}
