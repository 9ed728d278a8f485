package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bargain-market.git/internal/bargain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// origin dicek di edge/proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket connection to the gateway's frame channel.
type wsConn struct{ c *websocket.Conn }

func (w wsConn) ReadMessage() ([]byte, error) {
	_, b, err := w.c.ReadMessage()
	return b, err
}

func (w wsConn) WriteMessage(b []byte) error {
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w wsConn) Close() error { return w.c.Close() }

type WSHandler struct {
	Gateway *bargain.Gateway
	Log     *zap.Logger
}

// Register mounts the realtime endpoint. Auth jalan di dalam protokol
// (query token atau frame pertama), bukan middleware HTTP.
func (h *WSHandler) Register(r *chi.Mux) {
	r.Get("/bargains/{id}/ws", h.serve)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Gateway.Serve(r.Context(), wsConn{c: conn}, chi.URLParam(r, "id"), r.URL.Query().Get("token"))
}
