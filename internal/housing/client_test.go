package housing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"internationally/internal/config"
	"internationally/internal/geo"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.HousingConfig{
		BaseURL: serverURL,
		APIKey:  "test-key",
		APIHost: "test-host",
	})
}

func TestSearchParsesListings(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/propertyExtendedSearch", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-RapidAPI-Key"))
		assert.Equal(t, "test-host", r.Header.Get("X-RapidAPI-Host"))
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"props": [
				{
					"zpid": 1001,
					"address": "5400 S Harper Ave APT 2",
					"price": 1450,
					"bedrooms": 1,
					"bathrooms": 1,
					"propertyType": "APARTMENT",
					"detailUrl": "/homedetails/1001",
					"latitude": 41.797,
					"longitude": -87.588
				},
				{
					"zpid": 1002,
					"address": "No Coordinates St",
					"price": 900,
					"bedrooms": 0,
					"bathrooms": 1
				}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	listings, err := client.Search(context.Background(), SearchParams{
		Location:     "Hyde Park, Chicago",
		MinPrice:     0,
		MaxPrice:     2000,
		Bedrooms:     1,
		PropertyType: "apartment",
		RadiusMiles:  1,
	})

	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "Hyde Park, Chicago", gotQuery["location"])
	assert.Equal(t, "apartment", gotQuery["home_type"])
	assert.Equal(t, "0", gotQuery["price_min"])
	assert.Equal(t, "2000", gotQuery["price_max"])
	assert.Equal(t, "1", gotQuery["beds_min"])
	assert.Equal(t, "1", gotQuery["radius"])

	first := listings[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, "5400 S Harper Ave APT 2", first.Address)
	assert.Equal(t, "1450", first.Price)
	assert.Equal(t, geo.Point{Lat: 41.797, Lng: -87.588}, first.Location)

	assert.Equal(t, geo.DefaultPoint, listings[1].Location, "zero coordinates fall back to the default point")
}

func TestSearchEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"props": []}`))
	}))
	defer server.Close()

	listings, err := newTestClient(server.URL).Search(context.Background(), SearchParams{Location: "Nowhere"})

	require.NoError(t, err, "no results is not an error")
	assert.Empty(t, listings)
}

func TestSearchCapsListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"props": [
			{"zpid": 1}, {"zpid": 2}, {"zpid": 3}, {"zpid": 4}, {"zpid": 5}, {"zpid": 6},
			{"zpid": 7}, {"zpid": 8}, {"zpid": 9}, {"zpid": 10}, {"zpid": 11}, {"zpid": 12}
		]}`))
	}))
	defer server.Close()

	listings, err := newTestClient(server.URL).Search(context.Background(), SearchParams{Location: "Hyde Park"})

	require.NoError(t, err)
	assert.Len(t, listings, maxListings)
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Search(context.Background(), SearchParams{Location: "Hyde Park"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
