package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublish_DeliversEventsInOrder(t *testing.T) {
	p := NewPublisher("run-1", 4)
	p.Publish(Event{Type: EventStarted})
	p.Publish(Event{Type: EventCompanyComplete})
	p.Close()

	var got []EventType
	for evt := range p.Subscribe() {
		got = append(got, evt.Type)
	}
	assert.Equal(t, []EventType{EventStarted, EventCompanyComplete}, got)
}

func TestPublish_StampsRunID(t *testing.T) {
	p := NewPublisher("run-7", 2)
	p.Publish(Event{Type: EventStarted})
	p.Close()
	evt := <-p.Subscribe()
	assert.Equal(t, "run-7", evt.RunID)
}

// TestPublish_CoalescesProgressUnderBackpressure drives the publisher
// and channel reads from a single goroutine so the sequence is
// deterministic: fill the one-slot buffer, publish two more Progress
// events that must coalesce down to the last one, drain the first
// event to free room, then force the flush via Close.
func TestPublish_CoalescesProgressUnderBackpressure(t *testing.T) {
	p := NewPublisher("run-2", 1)
	ch := p.Subscribe()

	p.Publish(Event{Type: EventProgress, Payload: ProgressPayload{Stage: "stage-1"}})
	p.Publish(Event{Type: EventProgress, Payload: ProgressPayload{Stage: "stage-2"}})
	p.Publish(Event{Type: EventProgress, Payload: ProgressPayload{Stage: "stage-3"}})

	first := <-ch
	assert.Equal(t, "stage-1", first.Payload.(ProgressPayload).Stage)

	p.Close()

	second, ok := <-ch
	assert.True(t, ok)
	assert.Equal(t, "stage-3", second.Payload.(ProgressPayload).Stage, "only the last coalesced Progress event should survive")

	_, ok = <-ch
	assert.False(t, ok, "channel should be closed after the coalesced flush")
}

// TestPublish_TerminalEventBlocksUntilRoomFrees shows a terminal event
// is never dropped: Publish for it blocks while the single-slot buffer
// is full, and only completes once the reader drains the pending
// Progress event ahead of it.
func TestPublish_TerminalEventBlocksUntilRoomFrees(t *testing.T) {
	p := NewPublisher("run-3", 1)
	p.Publish(Event{Type: EventProgress, Payload: ProgressPayload{Stage: "stage-1"}})

	done := make(chan struct{})
	go func() {
		p.Publish(Event{Type: EventCompanyComplete})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("terminal publish completed before the buffer had room")
	case <-time.After(50 * time.Millisecond):
	}

	evt := <-p.Subscribe()
	assert.Equal(t, EventProgress, evt.Type)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("terminal publish never completed after room freed up")
	}

	evt = <-p.Subscribe()
	assert.Equal(t, EventCompanyComplete, evt.Type)
}
