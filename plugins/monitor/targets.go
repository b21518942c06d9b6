package monitor

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
	"go.uber.org/zap"
)

// AddResult describes a newly monitored target and the recent submissions shown for it.
// SeedErr is set when the current submissions could not be recorded as seen.
type AddResult struct {
	Target  *MonitoringTarget
	Watch   Watch
	Recent  []pinballmap.Submission
	SeedErr error
}

// AddLocationTarget monitors a location given by ID or by name
func (p *Plugin) AddLocationTarget(ctx context.Context, guildID, channelID, query string) (*AddResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("location cannot be empty")
	}

	if locationID, err := strconv.Atoi(query); err == nil {
		location, err := p.api.Location(ctx, locationID)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to look up location %d", locationID)
		}

		return p.addWatch(ctx, guildID, channelID, LocationTarget{
			LocationID:  location.ID,
			DisplayName: location.Name,
		})
	}

	match, err := p.api.SearchLocationByName(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to search location %q", query)
	}

	switch match.Status {
	case pinballmap.MatchExact:
		return p.addWatch(ctx, guildID, channelID, LocationTarget{
			LocationID:  match.Location.ID,
			DisplayName: match.Location.Name,
		})
	case pinballmap.MatchSuggestions:
		return nil, &AmbiguousLocationError{
			Query:       query,
			Suggestions: match.Suggestions,
		}
	}

	return nil, errors.Wrapf(pinballmap.ErrNotFound, "location %q", query)
}

// AddCityTarget monitors the area around a geocoded city, radiusMiles 0 uses the default radius
func (p *Plugin) AddCityTarget(ctx context.Context, guildID, channelID, city string, radiusMiles int) (*AddResult, error) {
	coordinates, err := p.geocode(ctx, city)
	if err != nil {
		return nil, err
	}

	return p.AddCoordinateTarget(ctx, guildID, channelID, coordinates.Latitude, coordinates.Longitude, radiusMiles)
}

// AddCoordinateTarget monitors the area around a point, radiusMiles 0 uses the default radius
func (p *Plugin) AddCoordinateTarget(
	ctx context.Context,
	guildID, channelID string,
	latitude, longitude float64,
	radiusMiles int,
) (*AddResult, error) {
	if radiusMiles == 0 {
		radiusMiles = p.config.DefaultRadiusMiles
	}
	if radiusMiles == 0 {
		radiusMiles = defaultRadiusMiles
	}

	area := GeographicTarget{
		Latitude:    latitude,
		Longitude:   longitude,
		RadiusMiles: radiusMiles,
	}
	err := area.Validate()
	if err != nil {
		return nil, err
	}

	return p.addWatch(ctx, guildID, channelID, area)
}

// addWatch seeds the seen ledger with everything the watch currently returns and then
// stores the target, which inherits poll rate and notification types from its channel
func (p *Plugin) addWatch(ctx context.Context, guildID, channelID string, watch Watch) (*AddResult, error) {
	_, err := p.registry.EnsureChannel(guildID, channelID)
	if err != nil {
		return nil, errors.Wrap(err, "unable to set up channel")
	}

	err = p.ensureNotMonitored(channelID, watch)
	if err != nil {
		return nil, err
	}

	result := &AddResult{
		Watch: watch,
	}

	result.Recent, result.SeedErr = p.seedTarget(ctx, channelID, watch)
	if result.SeedErr != nil {
		p.logger.Warn("unable to seed seen submissions for new target",
			zap.String("channel_id", channelID),
			zap.String("watch", watch.String()),
			zap.Error(result.SeedErr),
		)
	}

	target := newTarget(channelID, watch, 0, "")
	err = p.registry.AddTarget(target)
	if err != nil {
		return nil, err
	}
	result.Target = target

	return result, nil
}

// ensureNotMonitored fails with ErrTargetExists before anything is seeded for a duplicate,
// seeding it would hide submissions still pending for the existing target
func (p *Plugin) ensureNotMonitored(channelID string, watch Watch) error {
	targets, err := p.storage.MonitoringTargets(channelID)
	if err != nil {
		return errors.Wrap(err, "unable to list monitoring targets")
	}

	key := watchKey(watch)
	for _, target := range targets {
		existing, err := target.Watch()
		if err != nil {
			continue
		}
		if watchKey(existing) == key {
			return ErrTargetExists
		}
	}

	return nil
}

func (p *Plugin) seedTarget(ctx context.Context, channelID string, watch Watch) ([]pinballmap.Submission, error) {
	submissions, err := p.fetchWatch(ctx, watch, false)
	if err != nil {
		return nil, err
	}

	err = p.filter.MarkSeen(channelID, uniqueSubmissions(submissions))
	if err != nil {
		return nil, err
	}

	types := NotificationMachines
	if channel, err := p.registry.Channel(channelID); err == nil {
		types = channel.NotificationTypes
	}

	return mostRecent(filterByNotificationTypes(submissions, types), manualCheckLimit), nil
}

func (p *Plugin) geocode(ctx context.Context, city string) (*pinballmap.Coordinates, error) {
	city = strings.TrimSpace(city)

	if p.geocache != nil {
		coordinates, ok, err := p.geocache.get(city)
		if err != nil {
			p.logger.Warn("unable to read geocode cache", zap.String("city", city), zap.Error(err))
		}
		if ok {
			return coordinates, nil
		}
	}

	coordinates, err := p.api.GeocodeCityName(ctx, city)
	if err != nil {
		return nil, err
	}

	if p.geocache != nil {
		err = p.geocache.set(city, coordinates)
		if err != nil {
			p.logger.Warn("unable to write geocode cache", zap.String("city", city), zap.Error(err))
		}
	}

	return coordinates, nil
}
