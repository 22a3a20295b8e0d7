package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamPushInterval = 1 * time.Second
	streamWriteTimeout = 5 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Debug("stream_upgrade_failed", zap.Error(err))
		return
	}
	s.serveStreamConnection(conn)
}

func (s *Server) serveStreamConnection(conn *websocket.Conn) {
	defer conn.Close()

	if err := writeStreamPayload(conn, s.statusPayload()); err != nil {
		return
	}

	ticker := time.NewTicker(streamPushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := writeStreamPayload(conn, s.statusPayload()); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeStreamPayload(conn *websocket.Conn, payload statusPayload) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(payload)
}
