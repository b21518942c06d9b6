package monitor

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedTarget is returned for stored targets that do not describe exactly one watch
var ErrMalformedTarget = errors.New("malformed monitoring target")

// Watch is what a MonitoringTarget watches: a LocationTarget or a GeographicTarget
type Watch interface {
	targetType() TargetType
	String() string
}

// LocationTarget watches a single PinballMap location
type LocationTarget struct {
	LocationID  int
	DisplayName string
}

func (LocationTarget) targetType() TargetType { return TargetTypeLocation }

func (t LocationTarget) String() string {
	if t.DisplayName == "" {
		return fmt.Sprintf("Location %d", t.LocationID)
	}
	return fmt.Sprintf("%s (location %d)", t.DisplayName, t.LocationID)
}

// GeographicTarget watches every location within a radius of a point
type GeographicTarget struct {
	Latitude    float64
	Longitude   float64
	RadiusMiles int
}

func (GeographicTarget) targetType() TargetType { return TargetTypeGeographic }

func (t GeographicTarget) String() string {
	return fmt.Sprintf("%.5f, %.5f (%d mi)", t.Latitude, t.Longitude, t.RadiusMiles)
}

// Validate checks the coordinate and radius ranges
func (t GeographicTarget) Validate() error {
	// written as negated ranges so NaN fails them
	if !(t.Latitude >= -90 && t.Latitude <= 90) {
		return errors.Errorf("latitude %v must be between -90 and 90", t.Latitude)
	}
	if !(t.Longitude >= -180 && t.Longitude <= 180) {
		return errors.Errorf("longitude %v must be between -180 and 180", t.Longitude)
	}
	if t.RadiusMiles < 1 || t.RadiusMiles > 100 {
		return errors.Errorf("radius %d must be between 1 and 100 miles", t.RadiusMiles)
	}
	return nil
}

// Watch resolves the stored columns into the watched entity
func (t *MonitoringTarget) Watch() (Watch, error) {
	hasLocation := t.LocationID != nil
	hasArea := t.Latitude != nil || t.Longitude != nil || t.RadiusMiles != nil

	switch t.TargetType {
	case TargetTypeLocation:
		if !hasLocation || hasArea {
			return nil, errors.Wrapf(ErrMalformedTarget, "location target %d", t.ID)
		}
		return LocationTarget{LocationID: *t.LocationID, DisplayName: t.LocationName}, nil

	case TargetTypeGeographic:
		if hasLocation || t.Latitude == nil || t.Longitude == nil || t.RadiusMiles == nil {
			return nil, errors.Wrapf(ErrMalformedTarget, "geographic target %d", t.ID)
		}
		area := GeographicTarget{Latitude: *t.Latitude, Longitude: *t.Longitude, RadiusMiles: *t.RadiusMiles}
		if err := area.Validate(); err != nil {
			return nil, errors.Wrapf(ErrMalformedTarget, "geographic target %d: %s", t.ID, err)
		}
		return area, nil
	}

	return nil, errors.Wrapf(ErrMalformedTarget, "target %d has unknown type %q", t.ID, t.TargetType)
}

// watchKey identifies what a watch points at, ignoring display names
func watchKey(watch Watch) string {
	switch w := watch.(type) {
	case LocationTarget:
		return fmt.Sprintf("location:%d", w.LocationID)
	case GeographicTarget:
		return fmt.Sprintf("area:%v:%v:%d", w.Latitude, w.Longitude, w.RadiusMiles)
	}
	return fmt.Sprintf("%T", watch)
}

// newTarget builds the stored representation of a watch
func newTarget(channelID string, watch Watch, pollRateMinutes int, notificationTypes NotificationType) *MonitoringTarget {
	target := &MonitoringTarget{
		ChannelID:         channelID,
		TargetType:        watch.targetType(),
		PollRateMinutes:   pollRateMinutes,
		NotificationTypes: notificationTypes,
	}

	switch w := watch.(type) {
	case LocationTarget:
		locationID := w.LocationID
		target.LocationID = &locationID
		target.LocationName = w.DisplayName
	case GeographicTarget:
		latitude, longitude, radius := w.Latitude, w.Longitude, w.RadiusMiles
		target.Latitude = &latitude
		target.Longitude = &longitude
		target.RadiusMiles = &radius
	}

	return target
}
