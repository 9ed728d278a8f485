package bargain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func drain(sub *Subscriber) [][]byte {
	var out [][]byte
	for {
		select {
		case b, ok := <-sub.Frames():
			if !ok {
				return out
			}
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a := NewSubscriber(8)
	b := NewSubscriber(8)
	r.Attach("room", "alice", a)
	r.Attach("room", "bob", b)

	r.Broadcast("room", map[string]string{"type": "hello"})

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestAttachSupersedesOldConnection(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	old := NewSubscriber(8)
	r.Attach("room", "alice", old)

	replacement := NewSubscriber(8)
	r.Attach("room", "alice", replacement)

	// channel lama ditutup, yang baru yang terima broadcast
	_, ok := <-old.Frames()
	assert.False(t, ok)

	r.Broadcast("room", map[string]string{"type": "hello"})
	assert.Len(t, drain(replacement), 1)
	assert.Equal(t, 1, r.Connections("room"))
}

func TestDetachOnlyRemovesOwnSubscriber(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	old := NewSubscriber(8)
	r.Attach("room", "alice", old)
	replacement := NewSubscriber(8)
	r.Attach("room", "alice", replacement)

	// cleanup koneksi lama tidak boleh melepas penggantinya
	r.Detach("room", "alice", old)
	assert.Equal(t, 1, r.Connections("room"))

	r.Detach("room", "alice", replacement)
	assert.Equal(t, 0, r.Connections("room"))
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	slow := NewSubscriber(1)
	fast := NewSubscriber(8)
	r.Attach("room", "slow", slow)
	r.Attach("room", "fast", fast)

	// penuhi buffer slow
	r.Broadcast("room", map[string]string{"type": "one"})
	r.Broadcast("room", map[string]string{"type": "two"})
	r.Broadcast("room", map[string]string{"type": "three"})

	// fast terima semua, slow cuma muat satu, sisanya drop
	assert.Len(t, drain(fast), 3)
	assert.Len(t, drain(slow), 1)
}

func TestTrySendAfterCloseIsSafe(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	sub := NewSubscriber(8)
	r.Attach("room", "alice", sub)
	r.Detach("room", "alice", sub)

	require.NotPanics(t, func() {
		assert.False(t, sub.TrySend([]byte("late")))
	})
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NotPanics(t, func() {
		r.Broadcast("ghost", map[string]string{"type": "hello"})
	})
}
