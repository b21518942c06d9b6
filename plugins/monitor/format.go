package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
)

const locationURLFormat = "https://pinballmap.com/map/?by_location_id=%d"

type submissionStyle struct {
	Title string
	Color int
}

var submissionStyles = map[string]submissionStyle{
	pinballmap.SubmissionTypeNewMachine:    {Title: "🎮 Machine added", Color: 0x2ECC71},
	pinballmap.SubmissionTypeRemoveMachine: {Title: "🗑️ Machine removed", Color: 0xE74C3C},
	pinballmap.SubmissionTypeCondition:     {Title: "🔧 New condition report", Color: 0xE67E22},
	pinballmap.SubmissionTypeScore:         {Title: "🏆 New high score", Color: 0xF1C40F},
	pinballmap.SubmissionTypeConfirm:       {Title: "✅ Line-up confirmed", Color: 0x3498DB},
}

var defaultStyle = submissionStyle{Title: "📌 New submission", Color: 0x95A5A6}

func submissionEmbed(submission pinballmap.Submission) *discordgo.MessageEmbed {
	style, ok := submissionStyles[submission.SubmissionType]
	if !ok {
		style = defaultStyle
	}

	embed := &discordgo.MessageEmbed{
		Title:       style.Title,
		Color:       style.Color,
		Description: submissionDescription(submission),
	}

	if submission.LocationID > 0 {
		embed.URL = fmt.Sprintf(locationURLFormat, submission.LocationID)
	}
	if !submission.CreatedAt.IsZero() {
		embed.Timestamp = submission.CreatedAt.Format(time.RFC3339)
	}
	if submission.Comment != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Comment",
			Value: truncate(submission.Comment, 1024),
		})
	}
	if submission.UserName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "by " + submission.UserName,
		}
	}

	return embed
}

func submissionDescription(submission pinballmap.Submission) string {
	var parts []string
	if submission.MachineName != "" {
		parts = append(parts, "**"+submission.MachineName+"**")
	}
	if submission.LocationName != "" {
		parts = append(parts, "at **"+submission.LocationName+"**")
	}
	if submission.CityName != "" {
		parts = append(parts, "("+submission.CityName+")")
	}

	if len(parts) == 0 {
		return submission.Submission
	}
	return strings.Join(parts, " ")
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

// formatTargets renders the numbered target list shown by the list command
func formatTargets(config *ChannelConfig, targets []MonitoringTarget) string {
	if len(targets) == 0 {
		return messageNoTargets
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "**Monitoring %d target(s)** (channel: every %d min, %s)\n",
		len(targets), config.PollRateMinutes, config.NotificationTypes)

	for i, target := range targets {
		description := "malformed target"
		if watch, err := target.Watch(); err == nil {
			description = watch.String()
		}

		fmt.Fprintf(&builder, "`%d.` %s", i+1, description)
		if target.PollRateMinutes > 0 && target.PollRateMinutes != config.PollRateMinutes {
			fmt.Fprintf(&builder, " · every %d min", target.PollRateMinutes)
		}
		if target.NotificationTypes != "" && target.NotificationTypes != config.NotificationTypes {
			fmt.Fprintf(&builder, " · %s", target.NotificationTypes)
		}
		builder.WriteString("\n")
	}

	return strings.TrimRight(builder.String(), "\n")
}
