// Package housing searches rental listings through a Zillow-style REST API.
package housing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"internationally/internal/config"
	"internationally/internal/geo"
)

const maxListings = 10

type SearchParams struct {
	Location     string
	MinPrice     int
	MaxPrice     int
	Bedrooms     int
	PropertyType string
	// Amenities mirrors the classifier output but is not sent upstream;
	// the listings API has no amenity filter.
	Amenities   []string
	RadiusMiles float64
}

type Listing struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Price        string    `json:"price"`
	Bedrooms     float64   `json:"bedrooms"`
	Bathrooms    float64   `json:"bathrooms"`
	PropertyType string    `json:"property_type"`
	DetailURL    string    `json:"detail_url"`
	Location     geo.Point `json:"location"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiHost    string
}

func NewClient(cfg config.HousingConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiHost:    cfg.APIHost,
	}
}

// Search returns up to ten listings. No results is an empty slice, not an
// error.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Listing, error) {
	query := url.Values{}
	query.Set("location", params.Location)
	query.Set("home_type", params.PropertyType)
	query.Set("price_min", strconv.Itoa(params.MinPrice))
	if params.MaxPrice > 0 {
		query.Set("price_max", strconv.Itoa(params.MaxPrice))
	}
	if params.Bedrooms > 0 {
		query.Set("beds_min", strconv.Itoa(params.Bedrooms))
	}
	if params.RadiusMiles > 0 {
		query.Set("radius", strconv.FormatFloat(params.RadiusMiles, 'f', -1, 64))
	}

	reqURL := c.baseURL + "/propertyExtendedSearch?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build housing request failed: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("housing request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read housing response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("housing response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Props []struct {
			ZPID         json.Number `json:"zpid"`
			Address      string      `json:"address"`
			Price        json.Number `json:"price"`
			Bedrooms     float64     `json:"bedrooms"`
			Bathrooms    float64     `json:"bathrooms"`
			PropertyType string      `json:"propertyType"`
			DetailURL    string      `json:"detailUrl"`
			Latitude     float64     `json:"latitude"`
			Longitude    float64     `json:"longitude"`
		} `json:"props"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse housing json failed: %w", err)
	}

	listings := make([]Listing, 0, len(parsed.Props))
	for _, prop := range parsed.Props {
		if len(listings) == maxListings {
			break
		}
		point := geo.Point{Lat: prop.Latitude, Lng: prop.Longitude}
		if point.Lat == 0 && point.Lng == 0 {
			point = geo.DefaultPoint
		}
		listings = append(listings, Listing{
			ID:           prop.ZPID.String(),
			Address:      prop.Address,
			Price:        prop.Price.String(),
			Bedrooms:     prop.Bedrooms,
			Bathrooms:    prop.Bathrooms,
			PropertyType: prop.PropertyType,
			DetailURL:    prop.DetailURL,
			Location:     point,
		})
	}
	return listings, nil
}
