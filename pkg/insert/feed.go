package insert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Material is one entry of the Insert XML feed. JSON keys match the column
// names of the exported spreadsheet.
type Material struct {
	ID               string  `json:"ID"`
	URL              string  `json:"URL"`
	ProjectName      string  `json:"Project Name"`
	Category         string  `json:"Category"`
	SubCategory      string  `json:"Sub Category"`
	MaterialName     string  `json:"Material Name"`
	Description      string  `json:"Description"`
	Length           string  `json:"Length"`
	LengthUnit       string  `json:"Length Unit"`
	Width            string  `json:"Width"`
	WidthUnit        string  `json:"Width Unit"`
	Height           string  `json:"Height"`
	HeightUnit       string  `json:"Height Unit"`
	Amount           string  `json:"Amount"`
	AmountUnit       string  `json:"Amount Unit"`
	Price            string  `json:"Price"`
	PricePer         string  `json:"Price Per"`
	City             string  `json:"City"`
	AvailableFrom    string  `json:"Available From"`
	AvailableTo      string  `json:"Available To"`
	Status           string  `json:"Status"`
	QualityAesthetic string  `json:"Quality Aesthetic"`
	UpdatedAt        string  `json:"Updated At"`
	Images           []Image `json:"Images"`
}

// Image is a photo attached to a feed material.
type Image struct {
	Name string `json:"Name"`
	URL  string `json:"URL"`
}

// Feed downloads and parses the complete XML catalogue.
func (c *Client) Feed(ctx context.Context) ([]Material, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/xml, text/xml").
		Get(c.config.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch insert feed: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("fetch insert feed: %w", &HTTPError{URL: c.config.FeedURL, StatusCode: res.StatusCode()})
	}

	materials, err := ParseFeed(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse insert feed: %w", err)
	}

	c.logger.Info().Int("materials", len(materials)).Msg("Feed fetched")
	return materials, nil
}

// ParseFeed reads <root><materials><material>... documents. Missing elements
// become empty strings; a feed without materials yields an empty slice.
func ParseFeed(r io.Reader) ([]Material, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, err
	}

	nodes, err := xmlquery.QueryAll(doc, "/root/materials/material")
	if err != nil {
		return nil, err
	}

	materials := make([]Material, 0, len(nodes))
	for _, node := range nodes {
		materials = append(materials, materialFromNode(node))
	}
	return materials, nil
}

func materialFromNode(node *xmlquery.Node) Material {
	m := Material{
		ID:               getText(node, "id"),
		URL:              getText(node, "url"),
		ProjectName:      getText(node, "project_name"),
		Category:         getText(node, "category"),
		SubCategory:      getText(node, "sub_category"),
		MaterialName:     getText(node, "material_name"),
		Description:      getText(node, "description"),
		Length:           getText(node, "length"),
		LengthUnit:       getText(node, "length_unit"),
		Width:            getText(node, "width"),
		WidthUnit:        getText(node, "width_unit"),
		Height:           getText(node, "height"),
		HeightUnit:       getText(node, "height_unit"),
		Amount:           getText(node, "amount"),
		AmountUnit:       getText(node, "amount_unit"),
		Price:            getText(node, "price"),
		PricePer:         getText(node, "price_per"),
		City:             getText(node, "city"),
		AvailableFrom:    getText(node, "available_from"),
		AvailableTo:      getText(node, "available_to"),
		Status:           getText(node, "status"),
		QualityAesthetic: getText(node, "quality_aesthetic"),
		UpdatedAt:        getText(node, "updated_at"),
		Images:           []Image{},
	}

	for _, img := range xmlquery.Find(node, "image") {
		m.Images = append(m.Images, Image{
			Name: getText(img, "name"),
			URL:  getText(img, "url"),
		})
	}
	return m
}

func getText(parent *xmlquery.Node, selector string) string {
	n := xmlquery.FindOne(parent, selector)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}
