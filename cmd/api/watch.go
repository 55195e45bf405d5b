package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const watchInterval = 2 * time.Second

// handleMetricsWatch pushes a metrics snapshot over a websocket every
// watchInterval until the client disconnects.
func (s *apiServer) handleMetricsWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("metrics watch: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Drain control frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	if err := conn.WriteJSON(s.engine.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.engine.Snapshot()); err != nil {
				return
			}
		}
	}
}
