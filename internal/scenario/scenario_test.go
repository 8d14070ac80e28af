package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/avoevodin/debtbot/internal/chat"
)

type recordingSender struct {
	sent []string
}

func (s *recordingSender) Send(ctx context.Context, channelID, text string, quickReplies ...string) error {
	s.sent = append(s.sent, text)
	return nil
}

func textEvent(text string) *chat.Event {
	return &chat.Event{ChannelID: "chan", UserID: "user", Private: true, Text: text}
}

func TestChainRetriesFailedStep(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	c := NewChain(sender)

	counts := make([]int, 3)
	step2Failures := 0
	c.SetChain(
		func(ctx context.Context, ev *chat.Event) error {
			counts[0]++
			return nil
		},
		func(ctx context.Context, ev *chat.Event) error {
			counts[1]++
			if step2Failures == 0 {
				step2Failures++
				return &ValidationError{Message: "try again"}
			}
			return nil
		},
		func(ctx context.Context, ev *chat.Event) error {
			counts[2]++
			return nil
		},
	)

	executions := 0
	for !c.Completed() {
		executions++
		if executions > 10 {
			t.Fatal("chain never completed")
		}
		if _, err := c.Execute(ctx, textEvent("msg")); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	if executions != 4 {
		t.Errorf("expected exactly 4 Execute calls, got %d", executions)
	}
	if counts[1] != 2 {
		t.Errorf("expected step 2 invoked twice, got %d", counts[1])
	}
	if counts[0] != 1 || counts[2] != 1 {
		t.Errorf("steps 1 and 3 should run once, got %v", counts)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "try again" {
		t.Errorf("expected one retry prompt, got %v", sender.sent)
	}
}

func TestScheduleNextGrowsChainMidExecution(t *testing.T) {
	ctx := context.Background()
	c := NewChain(&recordingSender{})

	var order []string
	var second Step
	second = func(ctx context.Context, ev *chat.Event) error {
		order = append(order, "second")
		return nil
	}
	c.ScheduleNext(func(ctx context.Context, ev *chat.Event) error {
		order = append(order, "first")
		c.ScheduleNext(second)
		return nil
	})

	done, err := c.Execute(ctx, textEvent(""))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if done {
		t.Fatal("chain should not be completed after first step scheduled another")
	}

	done, err = c.Execute(ctx, textEvent(""))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !done {
		t.Fatal("chain should be completed after second step")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected step order: %v", order)
	}
}

func TestUnexpectedErrorLeavesCursor(t *testing.T) {
	ctx := context.Background()
	c := NewChain(&recordingSender{})

	boom := errors.New("store unavailable")
	calls := 0
	c.SetChain(func(ctx context.Context, ev *chat.Event) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	})

	if _, err := c.Execute(ctx, textEvent("")); !errors.Is(err, boom) {
		t.Fatalf("expected propagated error, got %v", err)
	}
	if c.Completed() {
		t.Fatal("failed step must not advance the cursor")
	}

	done, err := c.Execute(ctx, textEvent(""))
	if err != nil {
		t.Fatalf("Execute retry: %v", err)
	}
	if !done {
		t.Fatal("chain should complete after the step recovers")
	}
}

func TestEmptyChainIsCompleted(t *testing.T) {
	c := NewChain(&recordingSender{})
	if !c.Completed() {
		t.Fatal("empty chain should read as completed")
	}
	done, err := c.Execute(context.Background(), textEvent(""))
	if err != nil || !done {
		t.Fatalf("Execute on empty chain = (%v, %v)", done, err)
	}
}
