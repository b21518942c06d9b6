package monitor

import (
	"context"
	"time"

	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
)

// Storage is what the poll loop and the channel check runner need from persistence
type Storage interface {
	ActiveChannels() ([]ChannelConfig, error)
	MonitoringTargets(channelID string) ([]MonitoringTarget, error)
	UpdateChannelLastPollTime(channelID string, at time.Time) error
	UpdateTargetLastCheckedTime(targetID uint, at time.Time) error
	FilterNewSubmissions(channelID string, submissions []pinballmap.Submission) ([]pinballmap.Submission, error)
	MarkSubmissionsSeen(channelID string, submissionIDs []int64) error
}

// Registry manages channel configurations and their targets
type Registry interface {
	Channel(channelID string) (*ChannelConfig, error)
	EnsureChannel(guildID, channelID string) (*ChannelConfig, error)
	AddTarget(target *MonitoringTarget) error
	RemoveTarget(channelID string, index int) (*MonitoringTarget, error)
	SetChannelPollRate(channelID string, minutes int) error
	SetTargetPollRate(channelID string, index int, minutes int) error
	SetChannelNotificationTypes(channelID string, types NotificationType) error
	SetTargetNotificationTypes(channelID string, index int, types NotificationType) error
}

// API is the upstream PinballMap and geocoding client
type API interface {
	FetchSubmissionsForLocation(ctx context.Context, locationID int, useMinDate bool) ([]pinballmap.Submission, error)
	FetchSubmissionsForCoordinates(ctx context.Context, latitude, longitude float64, radiusMiles int, useMinDate bool) ([]pinballmap.Submission, error)
	Location(ctx context.Context, locationID int) (*pinballmap.Location, error)
	SearchLocationByName(ctx context.Context, name string) (*pinballmap.LocationMatch, error)
	GeocodeCityName(ctx context.Context, name string) (*pinballmap.Coordinates, error)
}

// Notifier renders and delivers messages to a channel
type Notifier interface {
	// ResolveChannel returns ErrChannelNotFound if the channel cannot receive messages
	ResolveChannel(ctx context.Context, channelID string) error
	// PostSubmissions returns how many of submissions, in order, were delivered
	PostSubmissions(ctx context.Context, channelID string, submissions []pinballmap.Submission, config ChannelConfig) (int, error)
	LogAndSend(ctx context.Context, channelID string, text string) error
}
