// Package scenario implements resumable multi-step chat interactions: a
// chain of step handlers with a cursor that only advances when a step
// succeeds, plus the concrete debt-tracking flows built on it.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/avoevodin/debtbot/internal/chat"
)

// ValidationError is a recoverable input problem. Execute sends the message
// back to the user and keeps the cursor on the same step; the next inbound
// event retries it.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Step handles one inbound event. A nil return advances the chain; a
// *ValidationError re-prompts without advancing; any other error propagates
// to the dispatcher and leaves the scenario stuck at the current step.
type Step func(ctx context.Context, ev *chat.Event) error

// Chain is the step-chain engine. Steps are either declared upfront with
// SetChain or appended lazily with ScheduleNext, which is how branching
// conversations grow their own chain mid-execution.
type Chain struct {
	sender chat.Sender
	steps  []Step
	pos    int
}

func NewChain(sender chat.Sender) *Chain {
	return &Chain{sender: sender}
}

// ScheduleNext appends a step. When the chain was empty the cursor lands on
// the new step immediately.
func (c *Chain) ScheduleNext(step Step) {
	c.steps = append(c.steps, step)
}

// SetChain replaces the chain with a fixed step list and resets the cursor
// to the first step.
func (c *Chain) SetChain(steps ...Step) {
	if len(steps) == 0 {
		panic("scenario: SetChain requires at least one step")
	}
	c.steps = steps
	c.pos = 0
}

// Completed reports whether the cursor has advanced past the last step.
func (c *Chain) Completed() bool {
	return c.pos >= len(c.steps)
}

// Execute feeds the event to the current step. It returns whether the whole
// scenario has completed. Validation failures are reported to the user and
// retried; any other step failure is returned to the caller with the cursor
// unchanged.
func (c *Chain) Execute(ctx context.Context, ev *chat.Event) (bool, error) {
	if c.Completed() {
		return true, nil
	}
	if err := c.steps[c.pos](ctx, ev); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			if serr := c.sender.Send(ctx, ev.ChannelID, verr.Message); serr != nil {
				return false, serr
			}
			return false, nil
		}
		return false, err
	}
	c.pos++
	return c.Completed(), nil
}
