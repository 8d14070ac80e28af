package bot

import (
	"context"
	"strings"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
	"github.com/avoevodin/debtbot/internal/registry"
	"github.com/avoevodin/debtbot/internal/scenario"
)

// scenarioFactories is the static command table. Each command starts a fresh
// scenario in the sender's context; the triggering message itself feeds the
// scenario's first step.
var scenarioFactories = map[string]func(scenario.Deps) registry.Scenario{
	"/add_debt":       func(d scenario.Deps) registry.Scenario { return scenario.NewAddDebt(d) },
	"/share_debt":     func(d scenario.Deps) registry.Scenario { return scenario.NewShareDebt(d) },
	"/pay_off":        func(d scenario.Deps) registry.Scenario { return scenario.NewPayOffDebts(d) },
	"/get_debts":      func(d scenario.Deps) registry.Scenario { return scenario.NewGetDebts(d) },
	"/my_debts":       func(d scenario.Deps) registry.Scenario { return scenario.NewGetMyDebts(d) },
	"/detailed_debts": func(d scenario.Deps) registry.Scenario { return scenario.NewDetailedDebts(d) },
	"/impersonal":     func(d scenario.Deps) registry.Scenario { return scenario.NewImpersonalMode(d) },
}

const helpText = `/start — register yourself
/add_debt — record a debt owed to you
/share_debt — split one payment between several people
/pay_off — write off debts owed to you
/get_debts — who owes you
/my_debts — who you owe
/detailed_debts — individual debts with one person
/impersonal — act on behalf of others
/cancel — abort the current conversation`

func (b *Bot) handleCommand(ctx context.Context, key registry.ChatKey, ev *chat.Event) {
	command := ev.Text
	if i := strings.IndexByte(command, ' '); i > 0 {
		command = command[:i]
	}

	switch command {
	case "/start":
		b.handleStart(ctx, ev)
		return
	case "/help":
		b.reply(ev.ChannelID, helpText)
		return
	case "/cancel":
		b.registry.ResetScenario(key)
		b.reply(ev.ChannelID, "Cancelled")
		return
	}

	factory, ok := scenarioFactories[command]
	if !ok {
		b.reply(ev.ChannelID, "Unknown command, try /help")
		return
	}

	b.registry.RunScenario(key, factory(b.deps))
	if _, err := b.registry.Dispatch(ctx, ev); err != nil {
		b.log.Error().Err(err).Str("command", command).Msg("failed to start scenario")
	}
}

// handleStart registers the sender (or refreshes their chat identity) and
// links them to the default event when one is configured.
func (b *Bot) handleStart(ctx context.Context, ev *chat.Event) {
	privateChannelID := ev.ChannelID
	if !ev.Private {
		ch, err := b.session.UserChannelCreate(ev.UserID)
		if err != nil {
			b.log.Error().Err(err).Str("user", ev.UserID).Msg("failed to create dm channel")
		} else {
			privateChannelID = ch.ID
		}
	}

	user, err := b.ledger.GetUserByChatID(ctx, ev.UserID)
	if err != nil {
		b.log.Error().Err(err).Str("user", ev.UserID).Msg("failed to load user")
		b.reply(ev.ChannelID, "Something went wrong :(")
		return
	}

	if user == nil {
		user, err = b.ledger.AddUser(ctx, &ledger.User{
			Name:             ev.Username,
			ChatID:           ev.UserID,
			Username:         ev.Username,
			FirstName:        ev.FirstName,
			LastName:         ev.LastName,
			PrivateChannelID: privateChannelID,
		})
		if err != nil {
			b.log.Error().Err(err).Str("user", ev.UserID).Msg("failed to register user")
			b.reply(ev.ChannelID, "Something went wrong :(")
			return
		}
	} else {
		user.Username = ev.Username
		user.FirstName = ev.FirstName
		user.LastName = ev.LastName
		user.PrivateChannelID = privateChannelID
		if err := b.ledger.UpdateUserChat(ctx, user); err != nil {
			b.log.Error().Err(err).Str("user", ev.UserID).Msg("failed to refresh user")
		}
	}

	if b.deps.DefaultEvent != "" {
		// repeat /start from an existing member surfaces as a consistency error
		if err := b.ledger.LinkUserToEvent(ctx, user.Name, b.deps.DefaultEvent); err != nil && !ledger.IsConsistency(err) {
			b.log.Error().Err(err).Str("user", user.Name).Str("event", b.deps.DefaultEvent).
				Msg("failed to link user to event")
		}
	}

	b.reply(ev.ChannelID, "Hi "+user.DisplayName()+"! See /help for what I can do")
}
