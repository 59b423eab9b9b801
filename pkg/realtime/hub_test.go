package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) (ChangeEvent, bool) {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev, true
	case <-time.After(50 * time.Millisecond):
		return ChangeEvent{}, false
	}
}

func TestHubDeliversOnlyToParticipants(t *testing.T) {
	hub := NewHub(nil)
	student := hub.Subscribe("student-1", false)
	outsider := hub.Subscribe("student-2", false)
	admin := hub.Subscribe("admin-1", true)
	defer student.Close()
	defer outsider.Close()
	defer admin.Close()

	hub.Broadcast(ChangeEvent{Table: TableBookings, Op: OpInsert, RecordID: "b1", UserIDs: []string{"student-1", "tutor-1"}})

	ev, ok := receive(t, student)
	require.True(t, ok)
	assert.Equal(t, "b1", ev.RecordID)

	_, ok = receive(t, outsider)
	assert.False(t, ok)

	_, ok = receive(t, admin)
	assert.True(t, ok)
}

func TestHubFiltersByTable(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("u1", false, TableNotifications)
	defer sub.Close()

	hub.Broadcast(ChangeEvent{Table: TableBookings, UserIDs: []string{"u1"}})
	_, ok := receive(t, sub)
	assert.False(t, ok)

	hub.Broadcast(ChangeEvent{Table: TableNotifications, UserIDs: []string{"u1"}})
	_, ok = receive(t, sub)
	assert.True(t, ok)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("u1", false)
	defer sub.Close()

	for i := 0; i < subscriptionBuffer+5; i++ {
		hub.Broadcast(ChangeEvent{Table: TableMessages, UserIDs: []string{"u1"}})
	}
	assert.Len(t, sub.out, subscriptionBuffer)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("u1", false)
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Len())
	_, open := <-sub.C
	assert.False(t, open)
}

func TestMemoryBusForwardsToHub(t *testing.T) {
	hub := NewHub(nil)
	bus := NewMemoryBus()
	require.NoError(t, bus.StartForwarder(context.Background(), hub.Broadcast))
	sub := hub.Subscribe("u1", false)
	defer sub.Close()

	require.NoError(t, bus.Publish(context.Background(), ChangeEvent{Table: TableBookings, UserIDs: []string{"u1"}}))
	_, ok := receive(t, sub)
	assert.True(t, ok)
}
