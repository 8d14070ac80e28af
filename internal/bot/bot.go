// Package bot is the Discord adapter: it turns discordgo messages into chat
// events, routes them through the scenario registry and sends replies back.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
	"github.com/avoevodin/debtbot/internal/registry"
	"github.com/avoevodin/debtbot/internal/scenario"
)

type Bot struct {
	session  *discordgo.Session
	ledger   *ledger.Service
	registry *registry.Registry
	deps     scenario.Deps
	log      zerolog.Logger
}

func New(token string, svc *ledger.Service, reg *registry.Registry, defaultEvent string, log zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session:  session,
		ledger:   svc,
		registry: reg,
		log:      log.With().Str("component", "bot").Logger(),
	}
	bot.deps = scenario.Deps{
		Ledger:       svc,
		Sender:       &sender{session: session},
		Notifier:     reg,
		DefaultEvent: defaultEvent,
		Log:          log,
	}

	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onMessageCreate)

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.log.Info().Msg("discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info().Str("user", event.User.Username).Msg("connected")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author.Bot {
		return
	}

	ev := eventFromMessage(m)
	ctx := context.Background()
	key := registry.KeyFor(ev)
	if key.Primary {
		b.registry.ObservePrimary(key)
	}

	if strings.HasPrefix(ev.Text, "/") {
		b.handleCommand(ctx, key, ev)
		return
	}

	handled, err := b.registry.Dispatch(ctx, ev)
	if err != nil {
		// the scenario stays at its current step, the user can retry
		b.log.Error().Err(err).Str("channel", ev.ChannelID).Str("user", ev.UserID).
			Msg("scenario step failed")
		return
	}
	if !handled && ev.Private {
		b.reply(ev.ChannelID, "I'm lost, try /help")
	}
}

// eventFromMessage maps a Discord message to the transport-neutral event the
// scenarios consume. A mentioned user plays the role of a shared contact.
func eventFromMessage(m *discordgo.MessageCreate) *chat.Event {
	ev := &chat.Event{
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		FirstName: m.Author.GlobalName,
		Private:   m.GuildID == "",
		Text:      strings.TrimSpace(m.Content),
	}
	if len(m.Mentions) > 0 {
		ev.ContactID = m.Mentions[0].ID
		ev.Text = strings.TrimSpace(stripMentions(ev.Text))
	}
	return ev
}

func stripMentions(text string) string {
	for {
		start := strings.Index(text, "<@")
		if start < 0 {
			return text
		}
		end := strings.Index(text[start:], ">")
		if end < 0 {
			return text
		}
		text = text[:start] + text[start+end+1:]
	}
}

func (b *Bot) reply(channelID, text string) {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		b.log.Error().Err(err).Str("channel", channelID).Msg("failed to send message")
	}
}
