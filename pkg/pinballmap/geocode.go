package pinballmap

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type Coordinates struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

// GeocodeCityName resolves a city name to coordinates
func (c *Client) GeocodeCityName(ctx context.Context, name string) (*Coordinates, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(ErrNotFound, "empty city name")
	}

	query := url.Values{}
	query.Set("name", name)
	query.Set("count", "1")
	query.Set("language", "en")
	query.Set("format", "json")

	var resp geocodeResponse
	err := c.getJSON(ctx, c.GeocodingBaseURL+"search", query, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "failure geocoding %q", name)
	}

	if len(resp.Results) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "city %q", name)
	}

	result := resp.Results[0]
	parts := []string{result.Name}
	for _, part := range []string{result.Admin1, result.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return &Coordinates{
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		DisplayName: strings.Join(parts, ", "),
	}, nil
}
