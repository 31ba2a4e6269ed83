package slack

import (
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/minmin-app/minmin/internal/messenger"
)

// BuildPushBlocks renders an announcement for the staff channel.
func BuildPushBlocks(p messenger.Push) []slacklib.Block {
	header := slacklib.NewHeaderBlock(
		slacklib.NewTextBlockObject(slacklib.PlainTextType, p.Title, false, false),
	)
	body := slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType, p.Body, false, false),
		nil,
		nil,
	)

	tenant := p.TenantName
	if tenant == "" {
		tenant = p.TenantID.String()
	}
	meta := slacklib.NewContextBlock("push_meta",
		slacklib.NewTextBlockObject(slacklib.MarkdownType,
			fmt.Sprintf("*Restaurant:* %s  |  *Recipients:* %d", tenant, len(p.Tokens)), false, false),
	)

	return []slacklib.Block{header, body, meta}
}
