package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// sender delivers scenario output through Discord. Quick replies have no
// native widget in plain messages, so they are rendered as a hint line the
// user types back.
type sender struct {
	session *discordgo.Session
}

func (s *sender) Send(ctx context.Context, channelID, text string, quickReplies ...string) error {
	if len(quickReplies) > 0 {
		text += "\n[" + strings.Join(quickReplies, " | ") + "]"
	}
	_, err := s.session.ChannelMessageSend(channelID, text,
		discordgo.WithContext(ctx))
	return err
}
