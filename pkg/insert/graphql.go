package insert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrCategoryNotFound is returned when the API answers a category query
// with a null category.
var ErrCategoryNotFound = errors.New("insert category not found")

// categoryQuery selects a category with all of its products.
const categoryQuery = `query category($id: ID, $sector: [String], $category: [ID], $status: [String]) {
    category(id: $id sector: $sector category: $category status: $status) {
        id
        name
        producten {
            id
            title
            url
            omschrijving
            lengtehoogte
            eenheid_lengtehoogte
            breedte
            eenheid_breedte
            hoogtedikte
            eenheid_hoogtedikte
            hoeveelheid
            eenheid_hoeveel
            op_aanvraag
            adres
            postcode
            plaats
            locatie_gebouw
            latitude
            longitude
        }
    }
}
`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLError carries the errors array of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

// Error implements the error interface.
func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// HTTPError is returned for non-2xx responses from either endpoint.
type HTTPError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

// Category returns the named category and its products as raw JSON
// ({"id": ..., "name": ..., "producten": [...]}).
func (c *Client) Category(ctx context.Context, name string) (json.RawMessage, error) {
	id, ok := CategoryID(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c.CategoryByID(ctx, id)
}

// CategoryByID returns a category by its GraphQL ID.
func (c *Client) CategoryByID(ctx context.Context, id int) (json.RawMessage, error) {
	data, err := c.query(ctx, graphqlRequest{
		Query:     categoryQuery,
		Variables: map[string]any{"id": id},
	})
	if err != nil {
		return nil, fmt.Errorf("query insert category %d: %w", id, err)
	}

	category := gjson.GetBytes(data, "category")
	if !category.IsObject() {
		return nil, fmt.Errorf("%w: id %d", ErrCategoryNotFound, id)
	}

	c.logger.Info().
		Int("category_id", id).
		Str("category", category.Get("name").String()).
		Int64("products", category.Get("producten.#").Int()).
		Msg("Category fetched")
	return json.RawMessage(category.Raw), nil
}

// query posts a GraphQL request and returns the raw data member.
func (c *Client) query(ctx context.Context, req graphqlRequest) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(req).
		Post(c.config.GraphQLURL)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, &HTTPError{URL: c.config.GraphQLURL, StatusCode: res.StatusCode()}
	}

	body := res.Body()
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range errs.Array() {
			gqlErr.Messages = append(gqlErr.Messages, e.Get("message").String())
		}
		return nil, gqlErr
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, fmt.Errorf("response has no data")
	}
	return []byte(data.Raw), nil
}
