package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	// statsPushInterval is the rate at which /ws subscribers receive
	// snapshot frames.
	statsPushInterval = time.Second

	// statsWriteTimeout bounds a single snapshot write. A subscriber that
	// cannot drain frames within this window is dropped rather than allowed
	// to queue them.
	statsWriteTimeout = 2 * time.Second
)

// handleStatsSocket upgrades the connection and streams statistics snapshots
// until the client disconnects or the server shuts down.
func (s *Server) handleStatsSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "subscription aborted")

	log := s.log.With("remote", r.RemoteAddr)
	log.Debug("stats subscriber connected")

	// CloseRead keeps control frames serviced and cancels the context once
	// the client goes away. Subscribers only listen; they never send.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		if err := s.pushSnapshot(ctx, conn); err != nil {
			log.Debug("stats subscriber dropped", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			log.Debug("stats subscriber closed")
			return
		case <-ticker.C:
		}
	}
}

// pushSnapshot writes one JSON snapshot frame with a bounded deadline.
func (s *Server) pushSnapshot(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(s.stats.Snapshot())
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, statsWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
