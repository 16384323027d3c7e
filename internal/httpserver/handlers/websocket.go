package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/q962/tab-stash/internal/httpserver/deps"
	"github.com/q962/tab-stash/internal/logger"
	"github.com/q962/tab-stash/internal/stash"
	"github.com/q962/tab-stash/internal/utils"
)

const wsWriteWait = 10 * time.Second

// upgrader leaves CheckOrigin unset: gorilla then only accepts requests
// without an Origin header or with one matching the Host.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WebSocket pushes State snapshots as {"type":"state"} messages, starting
// with the current one. ?q= filters the entries of every snapshot. Clients
// are not expected to send anything but control frames.
func WebSocket(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		beat := heartbeat(d)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied with an HTTP error.
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer utils.Close(conn)

		states, cancel := d.Stash.Watch()
		defer cancel()

		ctx, stop := context.WithCancel(context.Background())
		defer stop()

		_ = conn.SetReadDeadline(time.Now().Add(2 * beat))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * beat))
		})
		go func() {
			defer stop()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						d.Logger.Debug("websocket read error", logger.Error(err))
					}
					return
				}
			}
		}()

		ticker := time.NewTicker(beat)
		defer ticker.Stop()

		d.Logger.Debug("websocket client connected", logger.String("remote_ip", r.RemoteAddr))
		defer d.Logger.Debug("websocket client disconnected", logger.String("remote_ip", r.RemoteAddr))

		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(wsWriteWait))
					return
				}
				if query != "" {
					st.Entries = stash.FilterEntries(st.Entries, query)
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(wsMessage{Type: "state", Data: st, Timestamp: time.Now().Unix()}); err != nil {
					d.Logger.Debug("websocket write failed", logger.Error(err))
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
