package monitor

import (
	"context"
	"fmt"
	"sort"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/metrics"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
	"go.uber.org/zap"
)

const manualCheckLimit = 5

const (
	messageNoTargets     = "No monitoring targets configured for this channel. Use `!add` to add one."
	messageNoSubmissions = "No submissions found for any monitored target."
)

// RunChecksForChannel runs one check cycle for a channel and reports whether anything was surfaced.
//
// Manual checks show the most recent submissions regardless of the seen ledger and return
// fetch errors. Automatic checks deliver only unseen submissions, stay silent when there is
// nothing new, and treat a failing target as failed instead of aborting. The channel's
// last poll time advances only if no target fetch failed.
func (p *Plugin) RunChecksForChannel(
	ctx context.Context,
	channelID string,
	config ChannelConfig,
	manual bool,
) (bool, error) {
	return p.runChecks(ctx, p.logger, channelID, config, manual)
}

func (p *Plugin) runChecks(
	ctx context.Context,
	logger *zap.Logger,
	channelID string,
	config ChannelConfig,
	manual bool,
) (bool, error) {
	logger = logger.With(
		zap.String("channel_id", channelID),
		zap.Bool("manual", manual),
	)

	targets, err := p.storage.MonitoringTargets(channelID)
	if err != nil {
		return false, errors.Wrap(err, "unable to list monitoring targets")
	}

	if len(targets) == 0 {
		if !manual {
			return false, nil
		}

		return false, p.notifier.LogAndSend(ctx, channelID, messageNoTargets)
	}

	var aggregated []pinballmap.Submission
	var apiFailures bool
	for _, target := range targets {
		submissions, failed, err := p.fetchForTarget(ctx, logger, target, config, manual)
		if err != nil {
			p.countCheck(manual, "error")
			return false, err
		}

		apiFailures = apiFailures || failed
		aggregated = append(aggregated, submissions...)
	}
	aggregated = uniqueSubmissions(aggregated)

	err = p.notifier.ResolveChannel(ctx, channelID)
	if err != nil {
		logger.Warn("unable to resolve channel, aborting check", zap.Error(err))
		p.countCheck(manual, "unresolved")
		return false, nil
	}

	var surfaced bool
	if manual {
		surfaced, err = p.deliverManual(ctx, channelID, config, aggregated)
	} else {
		surfaced, err = p.deliverAutomatic(ctx, logger, channelID, config, aggregated)
	}
	if err != nil {
		p.countCheck(manual, "error")
		return surfaced, err
	}

	if apiFailures {
		logger.Info("not advancing last poll time because some targets failed")
		p.countCheck(manual, "partial")
		return surfaced, nil
	}

	err = p.storage.UpdateChannelLastPollTime(channelID, p.now())
	if err != nil {
		p.countCheck(manual, "error")
		return surfaced, errors.Wrap(err, "unable to update channel last poll time")
	}

	p.countCheck(manual, "success")
	return surfaced, nil
}

func (p *Plugin) deliverManual(
	ctx context.Context,
	channelID string,
	config ChannelConfig,
	submissions []pinballmap.Submission,
) (bool, error) {
	recent := mostRecent(submissions, manualCheckLimit)

	if len(recent) == 0 {
		message := messageNoSubmissions
		if config.LastPollAt != nil {
			message = fmt.Sprintf("Nothing new since %s.", humanize.RelTime(*config.LastPollAt, p.now(), "ago", "from now"))
		}

		return false, p.notifier.LogAndSend(ctx, channelID, message)
	}

	err := p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("📋 **Last %d submissions:**", len(recent)))
	if err != nil {
		return false, err
	}

	_, err = p.notifier.PostSubmissions(ctx, channelID, recent, config)
	if err != nil {
		return false, errors.Wrap(err, "unable to deliver submissions")
	}

	return true, nil
}

func (p *Plugin) deliverAutomatic(
	ctx context.Context,
	logger *zap.Logger,
	channelID string,
	config ChannelConfig,
	submissions []pinballmap.Submission,
) (bool, error) {
	fresh, err := p.filter.FilterNew(channelID, submissions)
	if err != nil {
		return false, err
	}

	if len(fresh) == 0 {
		logger.Debug("nothing new")
		return false, nil
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].CreatedAt.Before(fresh[j].CreatedAt)
	})

	logger.Info("posting new submissions", zap.Int("amount", len(fresh)))

	delivered, postErr := p.notifier.PostSubmissions(ctx, channelID, fresh, config)
	if delivered < 0 {
		delivered = 0
	}
	if delivered > len(fresh) {
		delivered = len(fresh)
	}

	if delivered > 0 {
		metrics.SubmissionsDelivered.Add(float64(delivered))

		err = p.filter.MarkSeen(channelID, fresh[:delivered])
		if err != nil {
			logger.Warn("unable to mark delivered submissions as seen, retrying", zap.Error(err))
			err = p.filter.MarkSeen(channelID, fresh[:delivered])
		}
		if err != nil {
			logger.Error("delivered submissions are not marked as seen and may be delivered again",
				zap.Int("amount", delivered),
				zap.Error(err),
			)
			return true, err
		}
	}

	if postErr != nil {
		return delivered > 0, errors.Wrap(postErr, "unable to deliver submissions")
	}

	return true, nil
}

// mostRecent returns up to limit submissions, newest first
func mostRecent(submissions []pinballmap.Submission, limit int) []pinballmap.Submission {
	sorted := make([]pinballmap.Submission, len(submissions))
	copy(sorted, submissions)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func (p *Plugin) countCheck(manual bool, result string) {
	mode := "automatic"
	if manual {
		mode = "manual"
	}
	metrics.ChannelChecks.WithLabelValues(mode, result).Inc()
}
