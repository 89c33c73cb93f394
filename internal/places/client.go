// Package places searches nearby points of interest through the Google
// Places REST API (geocode + nearby search).
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"internationally/internal/config"
	"internationally/internal/geo"
)

const maxPlaces = 10

type SearchParams struct {
	SearchType   string
	Location     string
	RadiusMeters int
	Keywords     []string
	OpenNow      bool
}

type Place struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	Rating           float64   `json:"rating"`
	UserRatingsCount int       `json:"user_ratings_count"`
	OpenNow          bool      `json:"open_now"`
	Location         geo.Point `json:"location"`
	MapsURL          string    `json:"maps_url"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(cfg config.PlacesConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// Search geocodes the location, then runs a nearby search around it.
// No results is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Place, error) {
	center, err := c.geocode(ctx, params.Location)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("location", fmt.Sprintf("%f,%f", center.Lat, center.Lng))
	query.Set("radius", strconv.Itoa(params.RadiusMeters))
	query.Set("type", params.SearchType)
	query.Set("key", c.apiKey)
	if len(params.Keywords) > 0 {
		query.Set("keyword", strings.Join(params.Keywords, " "))
	}
	if params.OpenNow {
		query.Set("opennow", "true")
	}

	reqURL := c.baseURL + "/place/nearbysearch/json?" + query.Encode()
	raw, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			PlaceID          string  `json:"place_id"`
			Name             string  `json:"name"`
			Vicinity         string  `json:"vicinity"`
			Rating           float64 `json:"rating"`
			UserRatingsTotal int     `json:"user_ratings_total"`
			Geometry         struct {
				Location geo.Point `json:"location"`
			} `json:"geometry"`
			OpeningHours struct {
				OpenNow bool `json:"open_now"`
			} `json:"opening_hours"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse places json failed: %w", err)
	}

	results := make([]Place, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if len(results) == maxPlaces {
			break
		}
		point := item.Geometry.Location
		if point.Lat == 0 && point.Lng == 0 {
			point = center
		}
		results = append(results, Place{
			ID:               item.PlaceID,
			Name:             item.Name,
			Address:          item.Vicinity,
			Rating:           item.Rating,
			UserRatingsCount: item.UserRatingsTotal,
			OpenNow:          item.OpeningHours.OpenNow,
			Location:         point,
			MapsURL:          "https://www.google.com/maps/place/?q=place_id:" + url.QueryEscape(item.PlaceID),
		})
	}
	return results, nil
}

// geocode resolves a free-text location. An unresolvable location falls back
// to the default point rather than failing the whole search.
func (c *Client) geocode(ctx context.Context, location string) (geo.Point, error) {
	query := url.Values{}
	query.Set("address", location)
	query.Set("key", c.apiKey)

	raw, err := c.get(ctx, c.baseURL+"/geocode/json?"+query.Encode())
	if err != nil {
		return geo.Point{}, err
	}

	var parsed struct {
		Results []struct {
			Geometry struct {
				Location geo.Point `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return geo.Point{}, fmt.Errorf("parse geocode json failed: %w", err)
	}
	if len(parsed.Results) == 0 {
		return geo.DefaultPoint, nil
	}
	return parsed.Results[0].Geometry.Location, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build places request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read places response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("places response status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
