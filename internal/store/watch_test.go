package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGroupSubscriptionSendUnblocksOnStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &GroupSubscription{
		updates: make(chan GroupUpdate, 1),
		stop:    cancel,
	}

	// Fill the buffer so the next delivery would block on a consumer that
	// never reads again.
	if !sub.send(ctx, GroupUpdate{Deleted: true}) {
		t.Fatal("send into empty buffer reported cancellation")
	}

	sub.Stop()

	done := make(chan bool, 1)
	go func() {
		done <- sub.send(ctx, GroupUpdate{Err: errors.New("stream failed")})
	}()

	select {
	case delivered := <-done:
		if delivered {
			t.Error("send reported delivery after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after Stop with a full buffer")
	}
}

func TestGroupSubscriptionStopIsIdempotent(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	sub := &GroupSubscription{
		updates: make(chan GroupUpdate, 1),
		stop:    cancel,
	}
	sub.Stop()
	sub.Stop()
}
