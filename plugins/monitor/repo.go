package monitor

import (
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
)

// Repository implements Storage and Registry on top of gorm
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&ChannelConfig{},
		&MonitoringTarget{},
		&SeenSubmission{},
	).Error
}

func (r *Repository) ActiveChannels() ([]ChannelConfig, error) {
	var channels []ChannelConfig

	err := r.db.
		Where("is_active = ? AND channel_id IN (SELECT channel_id FROM monitoring_targets WHERE deleted_at IS NULL)", true).
		Order("created_at ASC").
		Find(&channels).
		Error
	if err != nil {
		return nil, err
	}

	return channels, nil
}

// MonitoringTargets returns the targets of a channel in creation order
func (r *Repository) MonitoringTargets(channelID string) ([]MonitoringTarget, error) {
	var targets []MonitoringTarget

	err := r.db.
		Where("channel_id = ?", channelID).
		Order("created_at ASC, id ASC").
		Find(&targets).
		Error
	if err != nil {
		return nil, err
	}

	return targets, nil
}

func (r *Repository) UpdateChannelLastPollTime(channelID string, at time.Time) error {
	return r.db.
		Model(&ChannelConfig{}).
		Where("channel_id = ?", channelID).
		Update("last_poll_at", at).
		Error
}

func (r *Repository) UpdateTargetLastCheckedTime(targetID uint, at time.Time) error {
	return r.db.
		Model(&MonitoringTarget{}).
		Where("id = ?", targetID).
		Update("last_checked_at", at).
		Error
}

// FilterNewSubmissions returns the submissions not yet in the channel's seen ledger, in input order
func (r *Repository) FilterNewSubmissions(
	channelID string,
	submissions []pinballmap.Submission,
) ([]pinballmap.Submission, error) {
	if len(submissions) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(submissions))
	for i, submission := range submissions {
		ids[i] = submission.ID
	}

	var seenIDs []int64
	err := r.db.
		Model(&SeenSubmission{}).
		Where("channel_id = ? AND submission_id IN (?)", channelID, ids).
		Pluck("submission_id", &seenIDs).
		Error
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}

	var fresh []pinballmap.Submission // nolint: prealloc
	for _, submission := range submissions {
		if _, ok := seen[submission.ID]; ok {
			continue
		}
		fresh = append(fresh, submission)
	}

	return fresh, nil
}

const insertSeenQuery = `INSERT INTO seen_submissions (channel_id, submission_id, seen_at) VALUES `

// MarkSubmissionsSeen records submissions as delivered. Already seen IDs are ignored;
// if the batch statement fails the rows are inserted one at a time.
func (r *Repository) MarkSubmissionsSeen(channelID string, submissionIDs []int64) error {
	ids := uniqueIDs(submissionIDs)
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()

	placeholders := make([]string, len(ids))
	values := make([]interface{}, 0, len(ids)*3)
	for i, id := range ids {
		placeholders[i] = "(?, ?, ?)"
		values = append(values, channelID, id, now)
	}

	// nolint: gosec
	err := r.db.Exec(insertSeenQuery+strings.Join(placeholders, ", ")+` ON CONFLICT DO NOTHING`, values...).Error
	if err == nil {
		return nil
	}

	for _, id := range ids {
		err = r.markSeen(channelID, id, now)
		if err != nil {
			return errors.Wrapf(err, "unable to mark submission %d as seen", id)
		}
	}

	return nil
}

func (r *Repository) markSeen(channelID string, submissionID int64, at time.Time) error {
	err := r.db.Exec(insertSeenQuery+`(?, ?, ?) ON CONFLICT DO NOTHING`, channelID, submissionID, at).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

func (r *Repository) Channel(channelID string) (*ChannelConfig, error) {
	var channel ChannelConfig

	err := r.db.First(&channel, "channel_id = ?", channelID).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrChannelNotConfigured
	}
	if err != nil {
		return nil, err
	}

	return &channel, nil
}

// EnsureChannel returns the channel configuration, creating it with defaults if required
func (r *Repository) EnsureChannel(guildID, channelID string) (*ChannelConfig, error) {
	var channel ChannelConfig

	err := r.db.
		Where(ChannelConfig{ChannelID: channelID}).
		Attrs(ChannelConfig{
			GuildID:           guildID,
			PollRateMinutes:   defaultPollRateMinutes,
			NotificationTypes: NotificationMachines,
		}).
		FirstOrCreate(&channel).
		Error
	if err != nil {
		return nil, err
	}

	return &channel, nil
}

// AddTarget stores a new target and activates its channel
func (r *Repository) AddTarget(target *MonitoringTarget) error {
	if target == nil {
		return errors.New("target cannot be nil")
	}

	tx := r.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	err := tx.Create(target).Error
	if err != nil {
		tx.Rollback() // nolint: errcheck
		if isUniqueViolation(err) {
			return ErrTargetExists
		}
		return err
	}

	err = tx.
		Model(&ChannelConfig{}).
		Where("channel_id = ?", target.ChannelID).
		Update("is_active", true).
		Error
	if err != nil {
		tx.Rollback() // nolint: errcheck
		return err
	}

	return tx.Commit().Error
}

// RemoveTarget deletes the target at the 1-based index in creation order
func (r *Repository) RemoveTarget(channelID string, index int) (*MonitoringTarget, error) {
	target, err := r.targetAt(channelID, index)
	if err != nil {
		return nil, err
	}

	err = r.db.Unscoped().Delete(target).Error
	if err != nil {
		return nil, err
	}

	return target, nil
}

func (r *Repository) targetAt(channelID string, index int) (*MonitoringTarget, error) {
	targets, err := r.MonitoringTargets(channelID)
	if err != nil {
		return nil, err
	}

	if index < 1 || index > len(targets) {
		return nil, ErrInvalidTargetIndex
	}

	return &targets[index-1], nil
}

func (r *Repository) SetChannelPollRate(channelID string, minutes int) error {
	if minutes < 1 {
		return ErrInvalidPollRate
	}

	return r.updateChannel(channelID, "poll_rate_minutes", minutes)
}

func (r *Repository) SetTargetPollRate(channelID string, index int, minutes int) error {
	if minutes < 1 {
		return ErrInvalidPollRate
	}

	return r.updateTarget(channelID, index, "poll_rate_minutes", minutes)
}

func (r *Repository) SetChannelNotificationTypes(channelID string, types NotificationType) error {
	return r.updateChannel(channelID, "notification_types", types)
}

func (r *Repository) SetTargetNotificationTypes(channelID string, index int, types NotificationType) error {
	return r.updateTarget(channelID, index, "notification_types", types)
}

func (r *Repository) updateChannel(channelID string, column string, value interface{}) error {
	result := r.db.
		Model(&ChannelConfig{}).
		Where("channel_id = ?", channelID).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChannelNotConfigured
	}

	return nil
}

func (r *Repository) updateTarget(channelID string, index int, column string, value interface{}) error {
	target, err := r.targetAt(channelID, index)
	if err != nil {
		return err
	}

	return r.db.
		Model(&MonitoringTarget{}).
		Where("id = ?", target.ID).
		Update(column, value).
		Error
}
