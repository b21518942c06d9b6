package monitor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/metrics"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
	"go.uber.org/zap"
)

// fetchForTarget fetches the submissions of one target and reports whether the fetch failed.
// Automatic checks swallow fetch errors and report failed, manual checks return them.
// Malformed targets and unknown upstream entities are data problems, not failures.
func (p *Plugin) fetchForTarget(
	ctx context.Context,
	logger *zap.Logger,
	target MonitoringTarget,
	config ChannelConfig,
	manual bool,
) (submissions []pinballmap.Submission, failed bool, err error) {
	logger = logger.With(zap.Uint("target_id", target.ID))

	watch, err := target.Watch()
	if err != nil {
		logger.Warn("skipping malformed target", zap.Error(err))
		return nil, false, nil
	}

	submissions, err = p.fetchWatch(ctx, watch, !manual)
	if err != nil {
		if errors.Cause(err) == ErrMalformedTarget {
			logger.Warn("skipping unsupported target", zap.Error(err))
			return nil, false, nil
		}

		if manual {
			return nil, false, errors.Wrapf(err, "unable to fetch submissions for %s", watch)
		}

		if pinballmap.IsNotFound(err) {
			logger.Warn("target not found upstream, skipping",
				zap.String("watch", watch.String()),
				zap.Error(err),
			)
			return nil, false, nil
		}

		logger.Warn("failure fetching submissions for target",
			zap.String("watch", watch.String()),
			zap.Error(err),
		)
		metrics.TargetFetchFailures.WithLabelValues(string(watch.targetType())).Inc()
		return nil, true, nil
	}

	err = p.storage.UpdateTargetLastCheckedTime(target.ID, p.now())
	if err != nil {
		logger.Warn("unable to update target last checked time", zap.Error(err))
	}

	types := target.NotificationTypes
	if types == "" {
		types = config.NotificationTypes
	}

	return filterByNotificationTypes(submissions, types), false, nil
}

func (p *Plugin) fetchWatch(ctx context.Context, watch Watch, useMinDate bool) (submissions []pinballmap.Submission, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while fetching submissions: %v", r)
		}
	}()

	switch w := watch.(type) {
	case LocationTarget:
		return p.api.FetchSubmissionsForLocation(ctx, w.LocationID, useMinDate)
	case GeographicTarget:
		return p.api.FetchSubmissionsForCoordinates(ctx, w.Latitude, w.Longitude, w.RadiusMiles, useMinDate)
	}

	return nil, errors.Wrapf(ErrMalformedTarget, "unsupported watch %T", watch)
}

func filterByNotificationTypes(submissions []pinballmap.Submission, types NotificationType) []pinballmap.Submission {
	filtered := make([]pinballmap.Submission, 0, len(submissions))
	for _, submission := range submissions {
		if !types.Allows(submission.SubmissionType) {
			continue
		}
		filtered = append(filtered, submission)
	}
	return filtered
}
