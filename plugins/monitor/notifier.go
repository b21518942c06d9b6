package monitor

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
	"go.uber.org/zap"
)

// Discord accepts at most ten embeds per message
const embedsPerMessage = 10

// DiscordNotifier delivers messages through a discordgo session
type DiscordNotifier struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func NewDiscordNotifier(session *discordgo.Session, logger *zap.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		session: session,
		logger:  logger,
	}
}

func (n *DiscordNotifier) ResolveChannel(ctx context.Context, channelID string) error {
	if n.session == nil {
		return ErrChannelNotFound
	}

	if n.session.State != nil {
		if _, err := n.session.State.Channel(channelID); err == nil {
			return nil
		}
	}

	_, err := n.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(ErrChannelNotFound, "channel %s: %s", channelID, err)
	}

	return nil
}

func (n *DiscordNotifier) PostSubmissions(
	ctx context.Context,
	channelID string,
	submissions []pinballmap.Submission,
	_ ChannelConfig,
) (int, error) {
	var delivered int
	for start := 0; start < len(submissions); start += embedsPerMessage {
		end := start + embedsPerMessage
		if end > len(submissions) {
			end = len(submissions)
		}

		embeds := make([]*discordgo.MessageEmbed, 0, end-start)
		for _, submission := range submissions[start:end] {
			embeds = append(embeds, submissionEmbed(submission))
		}

		_, err := n.session.ChannelMessageSendComplex(
			channelID,
			&discordgo.MessageSend{
				Embeds: embeds,
			},
			discordgo.WithContext(ctx),
		)
		if err != nil {
			return delivered, errors.Wrapf(err, "unable to send submissions %d to %d", start+1, end)
		}

		delivered = end
	}

	return delivered, nil
}

func (n *DiscordNotifier) LogAndSend(ctx context.Context, channelID string, text string) error {
	n.logger.Info("sending message",
		zap.String("channel_id", channelID),
		zap.String("text", text),
	)

	_, err := n.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "unable to send message")
	}

	return nil
}
