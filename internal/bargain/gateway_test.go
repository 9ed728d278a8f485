package bargain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn scripts the inbound side and records everything written back.
type fakeConn struct {
	in chan []byte

	mu     sync.Mutex
	out    [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	b, ok := <-c.in
	if !ok {
		return nil, io.EOF
	}
	return b, nil
}

func (c *fakeConn) WriteMessage(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed conn")
	}
	c.out = append(c.out, b)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) send(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	c.in <- b
}

func (c *fakeConn) disconnect() { close(c.in) }

// frames decodes every written frame's type field.
func (c *fakeConn) frames() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.out))
	for _, b := range c.out {
		var m map[string]any
		_ = json.Unmarshal(b, &m)
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) waitFrame(t *testing.T, frameType string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, f := range c.frames() {
			if f["type"] == frameType {
				return f
			}
		}
		select {
		case <-deadline:
			t.Fatalf("frame %q never arrived, got %v", frameType, c.frames())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *fakeConn) waitFrameFrom(t *testing.T, frameType, userID string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, f := range c.frames() {
			if f["type"] == frameType && f["user_id"] == userID {
				return f
			}
		}
		select {
		case <-deadline:
			t.Fatalf("frame %q from %q never arrived, got %v", frameType, userID, c.frames())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *fakeConn) hasFrame(frameType string) bool {
	for _, f := range c.frames() {
		if f["type"] == frameType {
			return true
		}
	}
	return false
}

type staticVerifier struct{ users map[string]string }

func (v *staticVerifier) Verify(token string) (string, error) {
	if u, ok := v.users[token]; ok {
		return u, nil
	}
	return "", errors.New("bad token")
}

func newTestGateway(t *testing.T) (*Gateway, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	verifier := &staticVerifier{users: map[string]string{
		"tok-buyer":  "buyer-1",
		"tok-seller": "seller-1",
		"tok-other":  "buyer-2",
	}}
	return &Gateway{Svc: svc, Verifier: verifier, Log: zap.NewNop()}, svc
}

func serve(g *Gateway, conn *fakeConn, roomID, queryToken string) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Serve(context.Background(), conn, roomID, queryToken)
	}()
	return done
}

func TestGatewayAuthViaQueryToken(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-buyer")

	f := conn.waitFrame(t, FrameAuthSuccess)
	assert.Equal(t, "buyer-1", f["user_id"])
	conn.waitFrame(t, FrameUserJoined)
	conn.waitFrame(t, FrameRoomInfo)

	conn.disconnect()
	<-done
}

func TestGatewayAuthViaFirstFrame(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	conn.send(t, map[string]string{"type": FrameAuth, "token": "tok-buyer"})
	done := serve(g, conn, room.ID, "")

	conn.waitFrame(t, FrameAuthSuccess)
	conn.disconnect()
	<-done
}

func TestGatewayRejectsBadToken(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-nope")
	<-done

	f := conn.waitFrame(t, FrameError)
	assert.Equal(t, "unauthorized", f["code"])
	assert.False(t, conn.hasFrame(FrameAuthSuccess))
}

func TestGatewayRejectsNonAuthFirstFrame(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	conn.send(t, map[string]string{"type": FramePing})
	done := serve(g, conn, room.ID, "")
	<-done

	f := conn.waitFrame(t, FrameError)
	assert.Equal(t, "auth_required", f["code"])
}

func TestGatewayRejectsUnknownRoom(t *testing.T) {
	g, _ := newTestGateway(t)

	conn := newFakeConn()
	done := serve(g, conn, "no-such-room", "tok-buyer")
	<-done

	f := conn.waitFrame(t, FrameError)
	assert.Equal(t, "not_found", f["code"])
}

func TestGatewayForbidsOutsiders(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	// buyer-2 bukan pemilik room dan bukan seller
	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-other")
	<-done

	f := conn.waitFrame(t, FrameError)
	assert.Equal(t, "forbidden", f["code"])
}

func TestGatewayPingPong(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-buyer")
	conn.waitFrame(t, FrameRoomInfo)

	conn.send(t, map[string]string{"type": FramePing})
	conn.waitFrame(t, FramePong)

	conn.disconnect()
	<-done
}

func TestGatewayChatFansOut(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	buyer := newFakeConn()
	buyerDone := serve(g, buyer, room.ID, "tok-buyer")
	buyer.waitFrame(t, FrameRoomInfo)

	seller := newFakeConn()
	sellerDone := serve(g, seller, room.ID, "tok-seller")
	seller.waitFrame(t, FrameRoomInfo)

	buyer.send(t, map[string]string{"type": FrameChatMessage, "content": "masih bisa kurang?"})

	f := seller.waitFrame(t, FrameNewMessage)
	msg := f["message"].(map[string]any)
	assert.Equal(t, "masih bisa kurang?", msg["content"])
	assert.Equal(t, "buyer-1", msg["user_id"])
	// pengirim juga dapat echo via broadcast
	buyer.waitFrame(t, FrameNewMessage)

	buyer.disconnect()
	seller.disconnect()
	<-buyerDone
	<-sellerDone
}

func TestGatewayTypingNotPersisted(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	buyer := newFakeConn()
	done := serve(g, buyer, room.ID, "tok-buyer")
	buyer.waitFrame(t, FrameRoomInfo)

	buyer.send(t, map[string]any{"type": FrameTyping, "is_typing": true})
	f := buyer.waitFrame(t, FrameTyping)
	assert.Equal(t, true, f["is_typing"])

	_, msgs, err := svc.RecentActivity(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	buyer.disconnect()
	<-done
}

func TestGatewayRecentActivity(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	_, err := svc.PlaceBid(context.Background(), room.ID, "buyer-1", BidInput{Price: price("70"), Quantity: 5})
	require.NoError(t, err)
	_, err = svc.AppendChat(context.Background(), room.ID, "buyer-1", "halo")
	require.NoError(t, err)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-buyer")
	conn.waitFrame(t, FrameRoomInfo)

	conn.send(t, map[string]string{"type": FrameRecentActivity})
	f := conn.waitFrame(t, FrameRecentActivityRe)

	assert.Len(t, f["bids"], 1)
	assert.Len(t, f["messages"], 1)

	conn.disconnect()
	<-done
}

func TestGatewayUnknownFrameKeepsConnectionAlive(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-buyer")
	conn.waitFrame(t, FrameRoomInfo)

	conn.send(t, map[string]string{"type": "bogus"})
	f := conn.waitFrame(t, FrameError)
	assert.Equal(t, "unknown_type", f["code"])

	// koneksi masih hidup
	conn.send(t, map[string]string{"type": FramePing})
	conn.waitFrame(t, FramePong)

	conn.disconnect()
	<-done
}

func TestGatewayBroadcastsPresence(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	buyer := newFakeConn()
	buyerDone := serve(g, buyer, room.ID, "tok-buyer")
	buyer.waitFrame(t, FrameRoomInfo)

	seller := newFakeConn()
	sellerDone := serve(g, seller, room.ID, "tok-seller")
	seller.waitFrame(t, FrameRoomInfo)

	buyer.waitFrameFrom(t, FrameUserJoined, "seller-1")

	seller.disconnect()
	<-sellerDone

	buyer.waitFrameFrom(t, FrameUserLeft, "seller-1")

	buyer.disconnect()
	<-buyerDone
}

func TestGatewayBidBroadcastReachesSubscribers(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-buyer")
	conn.waitFrame(t, FrameRoomInfo)

	// bid via jalur HTTP tetap ter-fan-out ke koneksi realtime
	_, err := svc.PlaceBid(context.Background(), room.ID, "seller-1", BidInput{Price: price("66"), Quantity: 5})
	require.NoError(t, err)

	f := conn.waitFrame(t, FrameNewBid)
	bid := f["bid"].(map[string]any)
	assert.Equal(t, "seller", bid["user_type"])

	conn.disconnect()
	<-done
}

func TestGatewayAcceptBroadcast(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-seller")
	conn.waitFrame(t, FrameRoomInfo)

	bid, err := svc.PlaceBid(context.Background(), room.ID, "seller-1", BidInput{Price: price("66"), Quantity: 5})
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), room.ID, "buyer-1", bid.ID)
	require.NoError(t, err)

	f := conn.waitFrame(t, FrameBargainAccepted)
	assert.Equal(t, bid.ID, f["accepted_bid_id"])

	conn.disconnect()
	<-done
}

func TestGatewayRejectBroadcast(t *testing.T) {
	g, svc := newTestGateway(t)
	room := publicRoom(t, svc)

	conn := newFakeConn()
	done := serve(g, conn, room.ID, "tok-seller")
	conn.waitFrame(t, FrameRoomInfo)

	require.NoError(t, svc.Reject(context.Background(), room.ID, "buyer-1"))

	// penolakan sampai ke subscriber yang masih attach
	f := conn.waitFrame(t, FrameBargainRejected)
	assert.Equal(t, room.ID, f["room_id"])
	assert.Equal(t, "buyer-1", f["user_id"])

	conn.disconnect()
	<-done
}
