package slack

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/minmin-app/minmin/internal/messenger"
)

// SlackAPI abstracts the subset of the Slack client used by Mirror.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// Mirror copies every announcement into a staff channel.
type Mirror struct {
	api     SlackAPI
	channel string
}

var _ messenger.Channel = (*Mirror)(nil) //nolint:gochecknoglobals // compile-time check

func NewMirror(api SlackAPI, channel string) *Mirror {
	return &Mirror{api: api, channel: channel}
}

// NewMirrorFromToken builds a Mirror backed by the Slack web API.
func NewMirrorFromToken(botToken, channel string) *Mirror {
	return NewMirror(slacklib.New(botToken), channel)
}

func (m *Mirror) Send(ctx context.Context, p messenger.Push) error {
	_, _, err := m.api.PostMessageContext(ctx, m.channel,
		slacklib.MsgOptionText(p.Title+": "+p.Body, false),
		slacklib.MsgOptionBlocks(BuildPushBlocks(p)...),
	)
	if err != nil {
		return fmt.Errorf("slack.Mirror.Send: %w", err)
	}

	return nil
}

func (m *Mirror) Platform() string {
	return "slack"
}
