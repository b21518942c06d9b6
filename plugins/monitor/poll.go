package monitor

import (
	"time"

	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/plugins/common"
	"go.uber.org/zap"
)

// Run is one scheduler tick: every active channel whose poll interval elapsed is checked,
// one after another. A failing channel never stops the others.
func (p *Plugin) Run(run *common.Run) error {
	channels, err := p.storage.ActiveChannels()
	if err != nil {
		return errors.Wrap(err, "unable to list active channels")
	}

	now := p.now()

	var due int
	for _, channel := range channels {
		if !shouldPoll(channel, now) {
			continue
		}
		due++

		p.pollChannel(run, channel)
	}

	run.Logger().Debug("run completed",
		zap.Int("channels", len(channels)),
		zap.Int("due", due),
		zap.Duration("took", time.Since(run.Launch)),
	)

	return nil
}

func (p *Plugin) pollChannel(run *common.Run, channel ChannelConfig) {
	defer func() {
		if r := recover(); r != nil {
			run.Except(errors.Errorf("panic while checking channel: %v", r), "channel_id", channel.ChannelID)
		}
	}()

	_, err := p.runChecks(run.Context(), run.Logger(), channel.ChannelID, channel, false)
	if err != nil {
		run.Except(err, "channel_id", channel.ChannelID)
	}
}

// shouldPoll reports whether the channel's poll interval has elapsed
func shouldPoll(channel ChannelConfig, now time.Time) bool {
	if channel.LastPollAt == nil {
		return true
	}

	rate := channel.PollRateMinutes
	if rate < 1 {
		rate = 1
	}

	return now.Sub(*channel.LastPollAt) >= time.Duration(rate)*time.Minute
}
