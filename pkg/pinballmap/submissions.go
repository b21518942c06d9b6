package pinballmap

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Submission types reported by PinballMap
const (
	SubmissionTypeNewMachine    = "new_lmx"
	SubmissionTypeRemoveMachine = "remove_machine"
	SubmissionTypeCondition     = "new_condition"
	SubmissionTypeScore         = "new_msx"
	SubmissionTypeConfirm       = "confirm_location"
)

const minDateFormat = "2006-01-02"

type Submission struct {
	ID             int64     `json:"id"`
	SubmissionType string    `json:"submission_type"`
	Submission     string    `json:"submission"`
	LocationID     int       `json:"location_id"`
	LocationName   string    `json:"location_name"`
	MachineID      int       `json:"machine_id"`
	MachineName    string    `json:"machine_name"`
	UserName       string    `json:"user_name"`
	Comment        string    `json:"comment"`
	CityName       string    `json:"city_name"`
	CreatedAt      time.Time `json:"created_at"`
}

type submissionsResponse struct {
	UserSubmissions []Submission    `json:"user_submissions"`
	Errors          json.RawMessage `json:"errors"`
}

// FetchSubmissionsForLocation returns the submissions of a single location.
// With useMinDate only submissions since yesterday are requested.
func (c *Client) FetchSubmissionsForLocation(ctx context.Context, locationID int, useMinDate bool) ([]Submission, error) {
	query := url.Values{}
	query.Set("id", strconv.Itoa(locationID))
	c.addMinDate(query, useMinDate)

	return c.fetchSubmissions(ctx, c.endpoint("user_submissions/location.json"), query)
}

// FetchSubmissionsForCoordinates returns the submissions within radiusMiles of the given point.
// With useMinDate only submissions since yesterday are requested.
func (c *Client) FetchSubmissionsForCoordinates(
	ctx context.Context,
	latitude, longitude float64,
	radiusMiles int,
	useMinDate bool,
) ([]Submission, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	query.Set("max_distance", strconv.Itoa(radiusMiles))
	c.addMinDate(query, useMinDate)

	return c.fetchSubmissions(ctx, c.endpoint("user_submissions/list_within_range.json"), query)
}

func (c *Client) addMinDate(query url.Values, useMinDate bool) {
	if !useMinDate {
		return
	}

	query.Set("min_date_of_submission", c.now().AddDate(0, 0, -1).Format(minDateFormat))
}

func (c *Client) fetchSubmissions(ctx context.Context, endpoint string, query url.Values) ([]Submission, error) {
	var resp submissionsResponse
	err := c.getJSON(ctx, endpoint, query, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "failure fetching submissions")
	}

	if hasErrors(resp.Errors) {
		return nil, errors.Wrapf(ErrNotFound, "api returned errors: %s", string(resp.Errors))
	}

	return resp.UserSubmissions, nil
}

func hasErrors(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	switch string(raw) {
	case "null", `""`, "[]", "{}":
		return false
	}

	return true
}
