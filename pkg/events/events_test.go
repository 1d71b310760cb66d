package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscriber) *Event {
	t.Helper()
	select {
	case e := <-sub.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe(ChannelJobs)
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Channel: ChannelJobs, Type: EventJobCreated, Message: "job j-1"})

	got := receive(t, sub)
	assert.Equal(t, EventJobCreated, got.Type)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestChannelFiltering(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	jobsOnly := b.Subscribe(ChannelJobs)
	everything := b.Subscribe()
	defer b.Unsubscribe(jobsOnly)
	defer b.Unsubscribe(everything)

	b.Publish(&Event{Channel: ChannelAlerts, Type: EventAlertFired})
	b.Publish(&Event{Channel: ChannelJobs, Type: EventJobUpdated})

	got := receive(t, jobsOnly)
	assert.Equal(t, EventJobUpdated, got.Type)

	first := receive(t, everything)
	second := receive(t, everything)
	assert.Equal(t, EventAlertFired, first.Type)
	assert.Equal(t, EventJobUpdated, second.Type)
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe(ChannelLogs)
	defer b.Unsubscribe(sub)

	// Never read: the 64-slot buffer fills and the rest drop.
	for i := 0; i < 200; i++ {
		b.Publish(&Event{Channel: ChannelLogs, Type: EventSystemStatus})
	}

	require.Eventually(t, func() bool {
		return b.Dropped(sub) > 0
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, sub.C, 64)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, b.SubscriberCount())

	// Double unsubscribe must not panic.
	b.Unsubscribe(sub)
}

func TestPublishNeverBlocksWhenBufferFull(t *testing.T) {
	// No Start: nothing drains the distribution buffer.
	b := NewBroker()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 300; i++ {
			b.Publish(&Event{Channel: ChannelLogs, Type: EventSystemStatus})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full distribution buffer")
	}
	assert.Equal(t, uint64(300-cap(b.eventCh)), b.PublishDropped())
}
