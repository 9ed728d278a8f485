package bargain

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Conn is one full-duplex client channel of discrete text frames.
// Implementasi production pakai websocket; test pakai fake in-memory.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(b []byte) error
	Close() error
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Gateway runs the per-connection protocol: authenticate sekali, authorize
// akses room, lalu loop pesan single-threaded sampai koneksi putus.
type Gateway struct {
	Svc      *Service
	Verifier TokenVerifier
	Log      *zap.Logger
}

type inboundFrame struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
	Content  string `json:"content,omitempty"`
}

func writeFrame(conn Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(b)
}

// authenticate accepts exactly one credential: dari query param, atau satu
// frame auth pertama. Gagal = error frame berkode + close, tidak pernah
// diabaikan diam-diam.
func (g *Gateway) authenticate(conn Conn, queryToken string) (string, bool) {
	token := queryToken
	if token == "" {
		raw, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return "", false
		}
		var first inboundFrame
		if err := json.Unmarshal(raw, &first); err != nil || first.Type != FrameAuth || first.Token == "" {
			_ = writeFrame(conn, errorFrame{Type: FrameError, Code: "auth_required",
				Message: `authentication required, send {"type":"auth","token":"..."}`})
			_ = conn.Close()
			return "", false
		}
		token = first.Token
	}

	userID, err := g.Verifier.Verify(token)
	if err != nil {
		_ = writeFrame(conn, errorFrame{Type: FrameError, Code: "unauthorized", Message: "authentication failed"})
		_ = conn.Close()
		return "", false
	}
	_ = writeFrame(conn, authSuccessFrame{Type: FrameAuthSuccess, Message: "successfully authenticated", UserID: userID})
	return userID, true
}

// Serve drives one connection from handshake to disconnect.
func (g *Gateway) Serve(ctx context.Context, conn Conn, roomID, queryToken string) {
	userID, ok := g.authenticate(conn, queryToken)
	if !ok {
		return
	}

	room, err := g.Svc.Room(ctx, roomID)
	if err != nil {
		_ = writeFrame(conn, errorFrame{Type: FrameError, Code: "not_found", Message: "bargain room not found"})
		_ = conn.Close()
		return
	}
	allowed, err := g.Svc.CanAccess(ctx, room, userID)
	if err != nil || !allowed {
		_ = writeFrame(conn, errorFrame{Type: FrameError, Code: "forbidden",
			Message: "you don't have access to this bargaining room"})
		_ = conn.Close()
		return
	}

	registry := g.Svc.Registry()
	sub := NewSubscriber(32)

	// write pump: satu-satunya penulis ke conn sesudah titik ini
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for b := range sub.Frames() {
			if err := conn.WriteMessage(b); err != nil {
				return
			}
		}
	}()

	registry.Attach(roomID, userID, sub)

	defer func() {
		// selalu detach + umumkan user_left, apapun penyebab keluarnya
		registry.Detach(roomID, userID, sub)
		registry.Broadcast(roomID, presenceFrame{Type: FrameUserLeft, UserID: userID, Timestamp: time.Now().UTC()})
		_ = conn.Close()
		<-pumpDone
	}()

	registry.Broadcast(roomID, presenceFrame{Type: FrameUserJoined, UserID: userID, Timestamp: time.Now().UTC()})

	g.send(sub, roomID, userID, roomInfoFrame{Type: FrameRoomInfo, Room: roomInfoBody{
		RoomID:       room.ID,
		RoomType:     room.Kind,
		Status:       room.Status,
		CurrentPrice: room.CurrentPrice,
		Quantity:     room.InitialQty,
	}})

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in inboundFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			g.send(sub, roomID, userID, errorFrame{Type: FrameError, Code: "bad_frame", Message: "malformed frame"})
			continue
		}
		g.dispatch(ctx, sub, roomID, userID, in)
	}
}

func (g *Gateway) dispatch(ctx context.Context, sub *Subscriber, roomID, userID string, in inboundFrame) {
	registry := g.Svc.Registry()
	switch in.Type {
	case FramePing:
		g.send(sub, roomID, userID, pongFrame{Type: FramePong, Timestamp: time.Now().UTC()})

	case FrameTyping:
		// indikator saja, tidak dipersist
		registry.Broadcast(roomID, typingFrame{
			Type:      FrameTyping,
			UserID:    userID,
			IsTyping:  in.IsTyping,
			Timestamp: time.Now().UTC(),
		})

	case FrameChatMessage:
		if _, err := g.Svc.AppendChat(ctx, roomID, userID, in.Content); err != nil {
			g.send(sub, roomID, userID, errorFrame{Type: FrameError, Code: "chat_failed", Message: "could not send message"})
		}

	case FrameRecentActivity:
		bids, msgs, err := g.Svc.RecentActivity(ctx, roomID)
		if err != nil {
			g.send(sub, roomID, userID, errorFrame{Type: FrameError, Code: "internal", Message: "could not load recent activity"})
			return
		}
		out := recentActivityFrame{Type: FrameRecentActivityRe, Bids: []BidView{}, Messages: []MessageView{}}
		for i := range bids {
			out.Bids = append(out.Bids, viewBid(&bids[i]))
		}
		for i := range msgs {
			out.Messages = append(out.Messages, viewMessage(&msgs[i]))
		}
		g.send(sub, roomID, userID, out)

	case FrameAuth:
		g.send(sub, roomID, userID, errorFrame{Type: FrameError, Code: "already_authenticated", Message: "already authenticated"})

	default:
		// frame tak dikenal = balasan error privat, koneksi tetap hidup
		g.send(sub, roomID, userID, errorFrame{Type: FrameError, Code: "unknown_type", Message: "unknown message type: " + in.Type})
	}
}

// send delivers a private frame via the connection's own subscriber so it
// never races the broadcast path.
func (g *Gateway) send(sub *Subscriber, roomID, userID string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		g.Log.Error("frame marshal failed", zap.Error(err))
		return
	}
	if !sub.TrySend(b) {
		g.Log.Warn("dropping private frame", zap.String("room_id", roomID), zap.String("user_id", userID))
	}
}
