package pinballmap

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const maxSuggestions = 5

type Location struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
}

// MatchStatus describes the outcome of a location search
type MatchStatus string

const (
	MatchExact       MatchStatus = "exact"
	MatchSuggestions MatchStatus = "suggestions"
	MatchNone        MatchStatus = "none"
)

type LocationMatch struct {
	Status      MatchStatus
	Location    *Location
	Suggestions []Location
}

type locationResponse struct {
	Location
	Errors json.RawMessage `json:"errors"`
}

type locationsResponse struct {
	Locations []Location      `json:"locations"`
	Errors    json.RawMessage `json:"errors"`
}

// Location returns the details of a single location
func (c *Client) Location(ctx context.Context, locationID int) (*Location, error) {
	var resp locationResponse
	err := c.getJSON(ctx, c.endpoint("locations/%d.json", locationID), nil, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "failure fetching location %d", locationID)
	}

	if hasErrors(resp.Errors) || resp.ID == 0 {
		return nil, errors.Wrapf(ErrNotFound, "location %d", locationID)
	}

	location := resp.Location
	return &location, nil
}

// SearchLocationByName looks up locations by name. A single result or a case-insensitive
// name match is exact, several results are returned as suggestions.
func (c *Client) SearchLocationByName(ctx context.Context, name string) (*LocationMatch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return &LocationMatch{Status: MatchNone}, nil
	}

	query := url.Values{}
	query.Set("by_location_name", name)

	var resp locationsResponse
	err := c.getJSON(ctx, c.endpoint("locations.json"), query, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "failure searching for location %q", name)
	}

	if hasErrors(resp.Errors) || len(resp.Locations) == 0 {
		return &LocationMatch{Status: MatchNone}, nil
	}

	if len(resp.Locations) == 1 {
		return &LocationMatch{Status: MatchExact, Location: &resp.Locations[0]}, nil
	}

	for i := range resp.Locations {
		if strings.EqualFold(resp.Locations[i].Name, name) {
			return &LocationMatch{Status: MatchExact, Location: &resp.Locations[i]}, nil
		}
	}

	suggestions := resp.Locations
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	return &LocationMatch{Status: MatchSuggestions, Suggestions: suggestions}, nil
}
