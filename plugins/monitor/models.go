package monitor

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
)

const (
	defaultPollRateMinutes = 60
	defaultRadiusMiles     = 25
)

// NotificationType selects which submission kinds are delivered
type NotificationType string

const (
	NotificationMachines NotificationType = "machines"
	NotificationComments NotificationType = "comments"
	NotificationAll      NotificationType = "all"
)

// ParseNotificationType validates a user supplied notification type
func ParseNotificationType(value string) (NotificationType, bool) {
	switch NotificationType(value) {
	case NotificationMachines, NotificationComments, NotificationAll:
		return NotificationType(value), true
	}

	return "", false
}

// Allows reports whether a submission of the given type is delivered
func (t NotificationType) Allows(submissionType string) bool {
	switch t {
	case NotificationAll:
		return true
	case NotificationComments:
		return submissionType == pinballmap.SubmissionTypeCondition
	default:
		return submissionType == pinballmap.SubmissionTypeNewMachine ||
			submissionType == pinballmap.SubmissionTypeRemoveMachine
	}
}

// TargetType is the stored discriminator of a MonitoringTarget
type TargetType string

const (
	TargetTypeLocation   TargetType = "location"
	TargetTypeGeographic TargetType = "geographic"
)

// ChannelConfig is maintained per Discord channel that configured monitoring
type ChannelConfig struct {
	ChannelID         string           `gorm:"primary_key"`
	GuildID           string           `gorm:"NOT NULL"`
	PollRateMinutes   int              `gorm:"NOT NULL;default:60"`
	NotificationTypes NotificationType `gorm:"NOT NULL;default:'machines'"`
	IsActive          bool             `gorm:"NOT NULL;index"`
	LastPollAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (*ChannelConfig) TableName() string {
	return "channel_configs"
}

// MonitoringTarget is a single watched location or area owned by a channel.
// Exactly one of the location columns or the geographic columns is set, see Watch.
type MonitoringTarget struct {
	gorm.Model
	ChannelID  string     `gorm:"NOT NULL;index;unique_index:idx_targets_channel_location,idx_targets_channel_area"`
	TargetType TargetType `gorm:"NOT NULL"`

	LocationID   *int `gorm:"unique_index:idx_targets_channel_location"`
	LocationName string

	Latitude    *float64 `gorm:"unique_index:idx_targets_channel_area"`
	Longitude   *float64 `gorm:"unique_index:idx_targets_channel_area"`
	RadiusMiles *int     `gorm:"unique_index:idx_targets_channel_area"`

	PollRateMinutes   int
	NotificationTypes NotificationType
	LastCheckedAt     *time.Time
}

func (*MonitoringTarget) TableName() string {
	return "monitoring_targets"
}

// SeenSubmission records a submission delivered to a channel by an automatic poll
type SeenSubmission struct {
	ChannelID    string `gorm:"primary_key;auto_increment:false"`
	SubmissionID int64  `gorm:"primary_key;auto_increment:false"`
	SeenAt       time.Time
}

func (*SeenSubmission) TableName() string {
	return "seen_submissions"
}
