package bargain

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Subscriber is the outbound half of one live connection: a bounded channel of
// marshaled frames. Hanya Subscriber yang boleh close channel-nya sendiri,
// jadi send sesudah supersede aman.
type Subscriber struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func NewSubscriber(buf int) *Subscriber {
	if buf <= 0 {
		buf = 32
	}
	return &Subscriber{ch: make(chan []byte, buf)}
}

// Frames is the receive side, consumed by the connection's write pump.
// Channel ditutup saat detach/supersede.
func (s *Subscriber) Frames() <-chan []byte { return s.ch }

// TrySend delivers without blocking. False = buffer penuh atau sudah closed.
func (s *Subscriber) TrySend(b []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- b:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Registry tracks live connections per room and fans events out to them.
// Entry room dibuat saat attach pertama dan dibuang saat set koneksinya kosong;
// Room yang persist di DB hidup lebih lama dari entry ini.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]*Subscriber // room_id -> user_id -> sub
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{rooms: make(map[string]map[string]*Subscriber), log: log}
}

// Attach registers sub for (roomID, userID). Koneksi lama user yang sama
// di-supersede: channel-nya ditutup di sini.
func (r *Registry) Attach(roomID, userID string, sub *Subscriber) {
	r.mu.Lock()
	conns, ok := r.rooms[roomID]
	if !ok {
		conns = make(map[string]*Subscriber)
		r.rooms[roomID] = conns
	}
	old := conns[userID]
	conns[userID] = sub
	r.mu.Unlock()

	if old != nil {
		old.close()
	}
}

// Detach removes sub, but only if it is still the live one for that user:
// detach dari koneksi yang sudah di-supersede tidak boleh melepas penggantinya.
func (r *Registry) Detach(roomID, userID string, sub *Subscriber) {
	r.mu.Lock()
	if conns, ok := r.rooms[roomID]; ok {
		if conns[userID] == sub {
			delete(conns, userID)
			if len(conns) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	r.mu.Unlock()
	sub.close()
}

// Broadcast delivers one event to every connection in the room, best-effort.
// Satu consumer lambat tidak menahan yang lain: gagal kirim di-drop dan
// dicatat, tidak pernah di-escalate ke caller.
func (r *Registry) Broadcast(roomID string, frame any) {
	b, err := json.Marshal(frame)
	if err != nil {
		r.log.Error("broadcast marshal failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}

	r.mu.Lock()
	snapshot := make(map[string]*Subscriber, len(r.rooms[roomID]))
	for uid, sub := range r.rooms[roomID] {
		snapshot[uid] = sub
	}
	r.mu.Unlock()

	for uid, sub := range snapshot {
		if !sub.TrySend(b) {
			r.log.Warn("dropping frame for slow or gone subscriber",
				zap.String("room_id", roomID), zap.String("user_id", uid))
		}
	}
}

// Connections returns how many live connections a room currently has.
func (r *Registry) Connections(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}
