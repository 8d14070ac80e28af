// Package chat defines the messaging boundary: the inbound event shape the
// scenario engine consumes and the outbound sending capability it uses.
// Transport adapters (internal/bot) translate to and from these types.
package chat

import "context"

// Quick-reply labels the bot may offer. The reply surface is limited to this
// fixed set; free text is always accepted alongside.
const (
	YesText         = "Yes"
	NoText          = "No"
	WriteOffAllText = "Write off all"
	ShareAllText    = "Share with all"
)

// Event is one inbound chat message, normalised across transports.
type Event struct {
	ChannelID string
	UserID    string
	Username  string
	FirstName string
	LastName  string
	Private   bool // one-to-one channel with the bot

	Text      string
	ContactID string // set when the message shares another user instead of text
}

// IsContact reports whether the event carries a shared contact payload.
func (e *Event) IsContact() bool {
	return e.ContactID != ""
}

// Sender delivers outbound text. quickReplies, when present, are offered to
// the user as one-tap answers; transports without that affordance render them
// as a hint line.
type Sender interface {
	Send(ctx context.Context, channelID, text string, quickReplies ...string) error
}
