package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

const (
	wsWriteDeadline = 10 * time.Second
	wsPingInterval  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer in front of the mux.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotSource is the engine's local fan-out: a channel of full-session
// snapshots plus a cancel that releases it.
type SnapshotSource interface {
	Subscribe() (<-chan *domain.Session, func())
	Session() *domain.Session
	IsLive() bool
	IsLoading() bool
}

type wsFrame struct {
	Session *domain.Session `json:"session"`
	Live    bool            `json:"live"`
	Loading bool            `json:"loading"`
}

// HandleLiveFeed upgrades to a websocket and pushes a session snapshot on
// every change, mirroring the remote store's snapshot-delivery contract to
// door devices. The subscription ends when the client goes away.
func HandleLiveFeed(src SnapshotSource, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		snapshots, cancel := src.Subscribe()
		defer cancel()

		// Drain client frames so pong handling and close detection work;
		// the feed is push-only.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		write := func(frame wsFrame) error {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			return conn.WriteJSON(frame)
		}

		// Initial frame so the device never starts blind.
		if err := write(wsFrame{Session: src.Session(), Live: src.IsLive(), Loading: src.IsLoading()}); err != nil {
			return
		}

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-clientGone:
				return
			case snap, ok := <-snapshots:
				if !ok {
					// Engine torn down.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session torn down"),
						time.Now().Add(wsWriteDeadline))
					return
				}
				if err := write(wsFrame{Session: snap, Live: src.IsLive(), Loading: src.IsLoading()}); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
