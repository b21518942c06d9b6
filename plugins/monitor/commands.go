package monitor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
	"go.uber.org/zap"
)

const commandTimeout = 2 * time.Minute

const usageAdd = "Usage: `!add location <id or name>`, `!add city <name> [radius]` or `!add coordinates <lat> <lon> [radius]`"

func (p *Plugin) handleMessageCreate(session *discordgo.Session, message *discordgo.MessageCreate) {
	if message.Author == nil || message.Author.Bot {
		return
	}
	if !strings.HasPrefix(message.Content, p.config.CommandPrefix) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := p.handleCommand(ctx, message.GuildID, message.ChannelID, message.Content)
	if err != nil {
		p.logger.Error("failure handling command",
			zap.String("channel_id", message.ChannelID),
			zap.String("content", message.Content),
			zap.Error(err),
		)
	}
}

// handleCommand executes one prefixed command and replies in the channel.
// Unknown commands are ignored.
func (p *Plugin) handleCommand(ctx context.Context, guildID, channelID, content string) error {
	fields := strings.Fields(strings.TrimPrefix(content, p.config.CommandPrefix))
	if len(fields) == 0 {
		return nil
	}

	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "add":
		return p.commandAdd(ctx, guildID, channelID, args)
	case "rm", "remove":
		return p.commandRemove(ctx, channelID, args)
	case "list":
		return p.commandList(ctx, channelID)
	case "check":
		return p.commandCheck(ctx, channelID)
	case "poll_rate":
		return p.commandPollRate(ctx, channelID, args)
	case "notifications":
		return p.commandNotifications(ctx, channelID, args)
	case "monitor_health":
		return p.commandHealth(ctx, channelID)
	}

	return nil
}

func (p *Plugin) commandAdd(ctx context.Context, guildID, channelID string, args []string) error {
	if len(args) < 2 {
		return p.notifier.LogAndSend(ctx, channelID, usageAdd)
	}

	var result *AddResult
	var err error
	switch strings.ToLower(args[0]) {
	case "location":
		result, err = p.AddLocationTarget(ctx, guildID, channelID, strings.Join(args[1:], " "))

	case "city":
		name, radius := splitRadius(args[1:])
		result, err = p.AddCityTarget(ctx, guildID, channelID, name, radius)

	case "coordinates", "coords":
		var latitude, longitude float64
		var radius int
		latitude, longitude, radius, err = parseCoordinates(args[1:])
		if err == nil {
			result, err = p.AddCoordinateTarget(ctx, guildID, channelID, latitude, longitude, radius)
		}

	default:
		return p.notifier.LogAndSend(ctx, channelID, usageAdd)
	}
	if err != nil {
		return p.notifier.LogAndSend(ctx, channelID, addErrorMessage(err))
	}

	err = p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("✅ Now monitoring %s.", result.Watch))
	if err != nil {
		return err
	}

	if result.SeedErr != nil {
		return p.notifier.LogAndSend(ctx, channelID, "⚠️ Unable to load the current submissions, recent ones may be posted on the next check.")
	}
	if len(result.Recent) == 0 {
		return p.notifier.LogAndSend(ctx, channelID, "No recent submissions found.")
	}

	err = p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("📋 **Last %d submissions:**", len(result.Recent)))
	if err != nil {
		return err
	}

	_, err = p.notifier.PostSubmissions(ctx, channelID, result.Recent, ChannelConfig{})
	return err
}

func addErrorMessage(err error) string {
	if ambiguous, ok := errors.Cause(err).(*AmbiguousLocationError); ok {
		var builder strings.Builder
		fmt.Fprintf(&builder, "🤔 Several locations match %q, add one by ID:", ambiguous.Query)
		for _, suggestion := range ambiguous.Suggestions {
			fmt.Fprintf(&builder, "\n`%d` %s", suggestion.ID, suggestion.Name)
			if suggestion.City != "" {
				fmt.Fprintf(&builder, " (%s)", suggestion.City)
			}
		}
		return builder.String()
	}

	switch {
	case errors.Cause(err) == ErrTargetExists:
		return "⚠️ That target is already monitored in this channel."
	case pinballmap.IsNotFound(err):
		return fmt.Sprintf("❌ Not found: %v", err)
	}

	return fmt.Sprintf("❌ Unable to add target: %v", err)
}

func (p *Plugin) commandRemove(ctx context.Context, channelID string, args []string) error {
	if len(args) != 1 {
		return p.notifier.LogAndSend(ctx, channelID, "Usage: `!rm <number>`")
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return p.notifier.LogAndSend(ctx, channelID, "❌ Target number must be a number.")
	}

	target, err := p.registry.RemoveTarget(channelID, index)
	if err != nil {
		return p.notifier.LogAndSend(ctx, channelID, registryErrorMessage(err))
	}

	description := "target"
	if watch, err := target.Watch(); err == nil {
		description = watch.String()
	}

	return p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("🗑️ Stopped monitoring %s.", description))
}

func (p *Plugin) commandList(ctx context.Context, channelID string) error {
	config, err := p.registry.Channel(channelID)
	if errors.Cause(err) == ErrChannelNotConfigured {
		return p.notifier.LogAndSend(ctx, channelID, messageNoTargets)
	}
	if err != nil {
		return err
	}

	targets, err := p.storage.MonitoringTargets(channelID)
	if err != nil {
		return err
	}

	return p.notifier.LogAndSend(ctx, channelID, formatTargets(config, targets))
}

func (p *Plugin) commandCheck(ctx context.Context, channelID string) error {
	config, err := p.registry.Channel(channelID)
	if errors.Cause(err) == ErrChannelNotConfigured {
		return p.notifier.LogAndSend(ctx, channelID, messageNoTargets)
	}
	if err != nil {
		return err
	}

	_, err = p.RunChecksForChannel(ctx, channelID, *config, true)
	if err != nil {
		return p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("❌ Error during manual check: %v", err))
	}

	return nil
}

func (p *Plugin) commandPollRate(ctx context.Context, channelID string, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return p.notifier.LogAndSend(ctx, channelID, "Usage: `!poll_rate <minutes> [target number]`")
	}

	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return p.notifier.LogAndSend(ctx, channelID, "❌ Poll rate must be a number of minutes.")
	}

	if len(args) == 2 {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return p.notifier.LogAndSend(ctx, channelID, "❌ Target number must be a number.")
		}

		err = p.registry.SetTargetPollRate(channelID, index, minutes)
		if err != nil {
			return p.notifier.LogAndSend(ctx, channelID, registryErrorMessage(err))
		}
		return p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("✅ Target %d poll rate set to %d minutes. Checks are scheduled per channel, use `!poll_rate <minutes>` to change how often this channel is checked.", index, minutes))
	}

	err = p.registry.SetChannelPollRate(channelID, minutes)
	if err != nil {
		return p.notifier.LogAndSend(ctx, channelID, registryErrorMessage(err))
	}
	return p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("✅ Poll rate set to %d minutes.", minutes))
}

func (p *Plugin) commandNotifications(ctx context.Context, channelID string, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return p.notifier.LogAndSend(ctx, channelID, "Usage: `!notifications <machines|comments|all> [target number]`")
	}

	types, ok := ParseNotificationType(strings.ToLower(args[0]))
	if !ok {
		return p.notifier.LogAndSend(ctx, channelID, "❌ Notification type must be one of machines, comments or all.")
	}

	if len(args) == 2 {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return p.notifier.LogAndSend(ctx, channelID, "❌ Target number must be a number.")
		}

		err = p.registry.SetTargetNotificationTypes(channelID, index, types)
		if err != nil {
			return p.notifier.LogAndSend(ctx, channelID, registryErrorMessage(err))
		}
		return p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("✅ Target %d notifications set to %s.", index, types))
	}

	err := p.registry.SetChannelNotificationTypes(channelID, types)
	if err != nil {
		return p.notifier.LogAndSend(ctx, channelID, registryErrorMessage(err))
	}
	return p.notifier.LogAndSend(ctx, channelID, fmt.Sprintf("✅ Notifications set to %s.", types))
}

func (p *Plugin) commandHealth(ctx context.Context, channelID string) error {
	if p.health == nil {
		return p.notifier.LogAndSend(ctx, channelID, "Monitoring health is not available.")
	}

	snapshot := p.health.Snapshot()
	now := p.now()

	status := "🟢 running"
	if !snapshot.Running {
		status = "🔴 stopped"
	}

	lines := []string{
		fmt.Sprintf("**Monitoring** %s, every %s", status, snapshot.Interval),
		fmt.Sprintf("Iterations: %s", humanize.Comma(snapshot.Iterations)),
		fmt.Sprintf("Last tick: %s", relativeTime(snapshot.LastTickAt, now)),
		fmt.Sprintf("Last success: %s", relativeTime(snapshot.LastSuccessAt, now)),
		fmt.Sprintf("Errors: %d consecutive, %s total", snapshot.ConsecutiveErrors, humanize.Comma(snapshot.TotalErrors)),
	}
	if snapshot.Running && !snapshot.NextTickAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Next tick: in %s", snapshot.UntilNextTick(now).Round(time.Second)))
	}

	return p.notifier.LogAndSend(ctx, channelID, strings.Join(lines, "\n"))
}

func relativeTime(at time.Time, now time.Time) string {
	if at.IsZero() {
		return "never"
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func registryErrorMessage(err error) string {
	switch errors.Cause(err) {
	case ErrInvalidTargetIndex:
		return "❌ No target with that number, see `!list`."
	case ErrInvalidPollRate:
		return "❌ Poll rate must be at least 1 minute."
	case ErrChannelNotConfigured:
		return messageNoTargets
	}

	return fmt.Sprintf("❌ %v", err)
}

// splitRadius splits a trailing radius off a city name
func splitRadius(args []string) (string, int) {
	if len(args) > 1 {
		if radius, err := strconv.Atoi(args[len(args)-1]); err == nil {
			return strings.Join(args[:len(args)-1], " "), radius
		}
	}
	return strings.Join(args, " "), 0
}

func parseCoordinates(args []string) (latitude, longitude float64, radius int, err error) {
	values := strings.Fields(strings.Replace(strings.Join(args, " "), ",", " ", -1))
	if len(values) < 2 || len(values) > 3 {
		return 0, 0, 0, errors.New("expected latitude, longitude and an optional radius")
	}

	latitude, err = strconv.ParseFloat(values[0], 64)
	if err != nil || math.IsNaN(latitude) || math.IsInf(latitude, 0) {
		return 0, 0, 0, errors.Errorf("invalid latitude %q", values[0])
	}
	longitude, err = strconv.ParseFloat(values[1], 64)
	if err != nil || math.IsNaN(longitude) || math.IsInf(longitude, 0) {
		return 0, 0, 0, errors.Errorf("invalid longitude %q", values[1])
	}
	if len(values) == 3 {
		radius, err = strconv.Atoi(values[2])
		if err != nil {
			return 0, 0, 0, errors.Errorf("invalid radius %q", values[2])
		}
	}

	return latitude, longitude, radius, nil
}
